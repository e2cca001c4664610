package protocol

import (
	"context"
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/transfer"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service executes pipetting protocols against the deck. Every stroke is
// guarded by the vessel and tip ledgers before the hardware moves, and the
// ledgers record only completed strokes, so a mid-transfer failure leaves
// them describing exactly what physically happened.
type Service struct {
	motion  Motion
	pump    Pump
	tip     *pipette.Tracker
	tipRepo pipette.Repository
	stocks  vessel.StockRepository
	wastes  vessel.WasteRepository
	wells   vessel.WellRepository
	consts  Constants
	logger  *zap.Logger
}

// ServiceParams collects the dependencies of a protocol Service.
type ServiceParams struct {
	Motion    Motion
	Pump      Pump
	Tip       *pipette.Tracker
	TipRepo   pipette.Repository
	Stocks    vessel.StockRepository
	Wastes    vessel.WasteRepository
	Wells     vessel.WellRepository
	Constants Constants
	Logger    *zap.Logger
}

// NewService creates a protocol Service.
func NewService(p ServiceParams) (*Service, error) {
	if p.Motion == nil || p.Pump == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "motion and pump ports are required")
	}
	if p.Tip == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "pipette tracker is required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Service{
		motion:  p.Motion,
		pump:    p.Pump,
		tip:     p.Tip,
		tipRepo: p.TipRepo,
		stocks:  p.Stocks,
		wastes:  p.Wastes,
		wells:   p.Wells,
		consts:  p.Constants,
		logger:  p.Logger,
	}, nil
}

// Tip exposes the tracker for state inspection.
func (s *Service) Tip() *pipette.Tracker {
	return s.tip
}

// Forward moves volume uL from source to dest using forward pipetting,
// splitting across strokes when the tip cannot carry it in one.
func (s *Service) Forward(ctx context.Context, from, to vessel.Vessel, volume, rate decimal.Decimal) error {
	if err := transfer.ValidatePairing(from.Kind(), to.Kind()); err != nil {
		return err
	}
	plan, err := transfer.NewPlan(volume, s.tip.Capacity, s.consts.DripStop)
	if err != nil {
		return err
	}
	if plan.IsNoOp() {
		s.logger.Debug("forward transfer skipped, nothing to move",
			zap.String("from", from.Label()), zap.String("to", to.Label()))
		return nil
	}
	overdraw := decimal.Zero
	if from.Kind() == vessel.KindWell {
		overdraw = s.consts.WellOverdraw
	}
	s.logger.Info("forward transfer",
		zap.String("from", from.Label()),
		zap.String("to", to.Label()),
		zap.String("volume_ul", volume.String()),
		zap.Int("repetitions", plan.Repetitions))

	for rep := 0; rep < plan.Repetitions; rep++ {
		pos := from.Position()
		if err := s.forwardStroke(ctx, from, to, plan.VolumePerRepetition, overdraw, rate, pos.X, s.drawHeight(from)); err != nil {
			return fmt.Errorf("forward stroke %d of %d: %w", rep+1, plan.Repetitions, err)
		}
	}
	return nil
}

// forwardStroke runs one aspirate-travel-dispense cycle. The overdraw is a
// pump-only margin: it rides along physically and leaves with the blowout,
// while the ledgers record perRep. aspirateX and aspirateZ let well clearing
// shift the draw point off center.
func (s *Service) forwardStroke(ctx context.Context, from, to vessel.Vessel, perRep, overdraw, rate decimal.Decimal, aspirateX, aspirateZ float64) error {
	blowout := vessel.Round(s.consts.AirGap.Add(s.consts.DripStop).Add(overdraw))

	if err := from.CheckWithdraw(perRep); err != nil {
		return err
	}
	if err := to.CheckDeposit(perRep); err != nil {
		return err
	}
	if err := s.tip.CheckAspirate(vessel.Round(perRep.Add(blowout))); err != nil {
		return err
	}

	if err := s.pump.Aspirate(ctx, s.consts.AirGap, rate); err != nil {
		return err
	}
	if err := s.tip.AddAir(s.consts.AirGap); err != nil {
		return err
	}

	src := from.Position()
	if err := s.motion.SafeMoveTo(ctx, aspirateX, src.Y, aspirateZ, ToolPipette); err != nil {
		return err
	}
	if err := s.pump.Aspirate(ctx, s.correctedVolume(vessel.Round(perRep.Add(overdraw)), from), rate); err != nil {
		return err
	}
	withdrawn, err := from.Withdraw(perRep)
	if err != nil {
		return err
	}
	if err := s.tip.AddLiquid(withdrawn); err != nil {
		return err
	}
	if err := s.tip.AddAir(overdraw); err != nil {
		return err
	}
	if err := s.persistVessel(ctx, from); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}

	if err := s.motion.MoveToSafePosition(ctx); err != nil {
		return err
	}
	if err := s.pump.Aspirate(ctx, s.consts.DripStop, rate); err != nil {
		return err
	}
	if err := s.tip.AddAir(s.consts.DripStop); err != nil {
		return err
	}

	dst := to.Position()
	if err := s.motion.SafeMoveTo(ctx, dst.X, dst.Y, s.dispenseHeight(to), ToolPipette); err != nil {
		return err
	}
	if err := s.pump.Dispense(ctx, perRep, rate, blowout); err != nil {
		return err
	}
	dispensed, err := s.tip.RemoveLiquid(perRep)
	if err != nil {
		return err
	}
	if err := to.Deposit(dispensed); err != nil {
		return err
	}
	s.tip.Vent(blowout)
	if err := s.persistVessel(ctx, to); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}

	return s.motion.MoveToSafePosition(ctx)
}

// Reverse moves volume uL from source to dest using reverse pipetting: each
// stroke carries a purge margin that is discarded into the purge vessel
// instead of being blown into the destination.
func (s *Service) Reverse(ctx context.Context, from, to vessel.Vessel, purge *vessel.WasteVial, volume, rate decimal.Decimal) error {
	if err := transfer.ValidatePairing(from.Kind(), to.Kind()); err != nil {
		return err
	}
	if purge == nil {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "reverse pipetting requires a purge vessel")
	}
	reserve := vessel.Round(s.consts.DripStop.Add(s.consts.PurgeVolume))
	plan, err := transfer.NewPlan(volume, s.tip.Capacity, reserve)
	if err != nil {
		return err
	}
	if plan.IsNoOp() {
		s.logger.Debug("reverse transfer skipped, nothing to move",
			zap.String("from", from.Label()), zap.String("to", to.Label()))
		return nil
	}
	s.logger.Info("reverse transfer",
		zap.String("from", from.Label()),
		zap.String("to", to.Label()),
		zap.String("volume_ul", volume.String()),
		zap.Int("repetitions", plan.Repetitions))

	for rep := 0; rep < plan.Repetitions; rep++ {
		if err := s.reverseStroke(ctx, from, to, purge, plan.VolumePerRepetition, rate); err != nil {
			return fmt.Errorf("reverse stroke %d of %d: %w", rep+1, plan.Repetitions, err)
		}
	}
	return nil
}

func (s *Service) reverseStroke(ctx context.Context, from, to vessel.Vessel, purge *vessel.WasteVial, perRep, rate decimal.Decimal) error {
	draw := vessel.Round(perRep.Add(s.consts.PurgeVolume))

	if err := from.CheckWithdraw(draw); err != nil {
		return err
	}
	if err := to.CheckDeposit(perRep); err != nil {
		return err
	}
	if err := purge.CheckDeposit(s.consts.PurgeVolume); err != nil {
		return err
	}
	if err := s.tip.CheckAspirate(vessel.Round(draw.Add(s.consts.AirGap).Add(s.consts.DripStop))); err != nil {
		return err
	}

	if err := s.pump.Aspirate(ctx, s.consts.AirGap, rate); err != nil {
		return err
	}
	if err := s.tip.AddAir(s.consts.AirGap); err != nil {
		return err
	}

	src := from.Position()
	if err := s.motion.SafeMoveTo(ctx, src.X, src.Y, s.drawHeight(from), ToolPipette); err != nil {
		return err
	}
	if err := s.pump.Aspirate(ctx, s.correctedVolume(draw, from), rate); err != nil {
		return err
	}
	withdrawn, err := from.Withdraw(draw)
	if err != nil {
		return err
	}
	if err := s.tip.AddLiquid(withdrawn); err != nil {
		return err
	}
	if err := s.persistVessel(ctx, from); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}

	if err := s.motion.MoveToSafePosition(ctx); err != nil {
		return err
	}
	if err := s.pump.Aspirate(ctx, s.consts.DripStop, rate); err != nil {
		return err
	}
	if err := s.tip.AddAir(s.consts.DripStop); err != nil {
		return err
	}

	dst := to.Position()
	if err := s.motion.SafeMoveTo(ctx, dst.X, dst.Y, s.dispenseHeight(to), ToolPipette); err != nil {
		return err
	}
	if err := s.pump.Dispense(ctx, perRep, rate, s.consts.DripStop); err != nil {
		return err
	}
	dispensed, err := s.tip.RemoveLiquid(perRep)
	if err != nil {
		return err
	}
	if err := to.Deposit(dispensed); err != nil {
		return err
	}
	s.tip.Vent(s.consts.DripStop)
	if err := s.persistVessel(ctx, to); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}

	if err := s.pump.Aspirate(ctx, s.consts.DripStop, rate); err != nil {
		return err
	}
	if err := s.tip.AddAir(s.consts.DripStop); err != nil {
		return err
	}

	purgePos := purge.Position()
	if err := s.motion.SafeMoveTo(ctx, purgePos.X, purgePos.Y, s.dispenseHeight(purge), ToolPipette); err != nil {
		return err
	}
	purgeBlowout := vessel.Round(s.consts.DripStop.Add(s.consts.AirGap))
	if err := s.pump.Dispense(ctx, s.consts.PurgeVolume, rate, purgeBlowout); err != nil {
		return err
	}
	purged, err := s.tip.RemoveLiquid(s.consts.PurgeVolume)
	if err != nil {
		return err
	}
	if err := purge.Deposit(purged); err != nil {
		return err
	}
	s.tip.Vent(purgeBlowout)
	if err := s.persistVessel(ctx, purge); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}

	return s.motion.MoveToSafePosition(ctx)
}

// correctedVolume compensates the pump stroke for the density and viscosity
// of the source solution. The ledger keeps the requested volume.
func (s *Service) correctedVolume(volume decimal.Decimal, from vessel.Vessel) decimal.Decimal {
	stock, ok := from.(*vessel.StockVial)
	if !ok {
		return volume
	}
	one := decimal.NewFromInt(1)
	factor := one.Add(one.Sub(stock.Density).Mul(one.Sub(stock.ViscosityCP)))
	return vessel.Round(volume.Mul(factor))
}

// drawHeight returns the z for aspirating: the liquid surface for wells,
// just off the floor for vials.
func (s *Service) drawHeight(v vessel.Vessel) float64 {
	if well, ok := v.(*vessel.Well); ok {
		return well.Depth()
	}
	return v.Position().ZBottom + s.consts.VialClearanceMM
}

// dispenseHeight returns the z for dispensing, above the vessel opening.
func (s *Service) dispenseHeight(v vessel.Vessel) float64 {
	return v.Position().ZTop
}

func (s *Service) persistVessel(ctx context.Context, v vessel.Vessel) error {
	switch vv := v.(type) {
	case *vessel.StockVial:
		if s.stocks == nil {
			return nil
		}
		return s.stocks.Save(ctx, vv)
	case *vessel.WasteVial:
		if s.wastes == nil {
			return nil
		}
		return s.wastes.Save(ctx, vv)
	case *vessel.Well:
		if s.wells == nil {
			return nil
		}
		return s.wells.Save(ctx, vv)
	}
	return nil
}

func (s *Service) persistTip(ctx context.Context) error {
	if s.tipRepo == nil {
		return nil
	}
	return s.tipRepo.Save(ctx, s.tip)
}
