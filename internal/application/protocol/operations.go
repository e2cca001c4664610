package protocol

import (
	"context"
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/transfer"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RinseWell fills the well with volume uL of rinse solution and drains it to
// waste, count times.
func (s *Service) RinseWell(ctx context.Context, well *vessel.Well, rinse *vessel.StockVial, waste *vessel.WasteVial, count int, volume, rate decimal.Decimal) error {
	if count <= 0 || volume.LessThanOrEqual(decimal.Zero) {
		s.logger.Debug("rinse skipped", zap.String("well", well.Label()))
		return nil
	}
	for i := 0; i < count; i++ {
		if err := s.Forward(ctx, rinse, well, volume, rate); err != nil {
			return fmt.Errorf("rinse cycle %d fill: %w", i+1, err)
		}
		if err := s.Forward(ctx, well, waste, volume, rate); err != nil {
			return fmt.Errorf("rinse cycle %d drain: %w", i+1, err)
		}
	}
	return nil
}

// FlushTip runs volume uL of flush solution straight through the tip into
// waste, count times. A zero volume is a no-op.
func (s *Service) FlushTip(ctx context.Context, flush *vessel.StockVial, waste *vessel.WasteVial, count int, volume, rate decimal.Decimal) error {
	if count <= 0 || volume.LessThanOrEqual(decimal.Zero) {
		s.logger.Debug("flush skipped, zero volume")
		return nil
	}
	for i := 0; i < count; i++ {
		if err := s.Forward(ctx, flush, waste, volume, rate); err != nil {
			return fmt.Errorf("flush cycle %d: %w", i+1, err)
		}
	}
	return nil
}

// ClearWell drains everything the well holds into waste. Each repetition
// sweeps both sides of the well: half the volume is drawn left of center and
// the rest right of center, chasing the last of the liquid.
func (s *Service) ClearWell(ctx context.Context, well *vessel.Well, waste *vessel.WasteVial, rate decimal.Decimal) error {
	if err := transfer.ValidateClearPairing(well.Kind(), waste.Kind()); err != nil {
		return err
	}
	total := well.CurrentVolume()
	plan, err := transfer.NewPlan(total, s.tip.Capacity, s.consts.DripStop)
	if err != nil {
		return err
	}
	if plan.IsNoOp() {
		s.logger.Debug("clear skipped, well already empty", zap.String("well", well.Label()))
		return nil
	}
	s.logger.Info("clearing well",
		zap.String("well", well.Label()),
		zap.String("volume_ul", total.String()),
		zap.Int("repetitions", plan.Repetitions))

	center := well.Position().X
	aspirateZ := well.Position().ZBottom
	firstHalf := vessel.Round(plan.VolumePerRepetition.Div(decimal.NewFromInt(2)))
	secondHalf := vessel.Round(plan.VolumePerRepetition.Sub(firstHalf))
	for rep := 0; rep < plan.Repetitions; rep++ {
		draws := [2]struct {
			x      float64
			volume decimal.Decimal
		}{
			{center - s.consts.ClearOffsetMM, firstHalf},
			{center + s.consts.ClearOffsetMM, secondHalf},
		}
		for i, draw := range draws {
			if !draw.volume.IsPositive() {
				continue
			}
			if err := s.forwardStroke(ctx, well, waste, draw.volume, decimal.Zero, rate, draw.x, aspirateZ); err != nil {
				return fmt.Errorf("clear stroke %d of %d: %w", 2*rep+i+1, 2*plan.Repetitions, err)
			}
		}
	}
	return nil
}

// Mix cycles volume uL up and down in the well count times. The well ledger
// is unchanged when every cycle completes.
func (s *Service) Mix(ctx context.Context, well *vessel.Well, count int, volume, rate decimal.Decimal) error {
	if count <= 0 || volume.LessThanOrEqual(decimal.Zero) {
		s.logger.Debug("mix skipped", zap.String("well", well.Label()))
		return nil
	}
	if err := well.CheckWithdraw(volume); err != nil {
		return err
	}
	if err := s.tip.CheckAspirate(volume); err != nil {
		return err
	}

	pos := well.Position()
	if err := s.motion.SafeMoveTo(ctx, pos.X, pos.Y, pos.ZBottom+s.consts.VialClearanceMM, ToolPipette); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := s.pump.Aspirate(ctx, volume, rate); err != nil {
			return err
		}
		withdrawn, err := well.Withdraw(volume)
		if err != nil {
			return err
		}
		if err := s.tip.AddLiquid(withdrawn); err != nil {
			return err
		}
		if err := s.pump.Dispense(ctx, volume, rate, decimal.Zero); err != nil {
			return err
		}
		returned, err := s.tip.RemoveLiquid(volume)
		if err != nil {
			return err
		}
		if err := well.Deposit(returned); err != nil {
			return err
		}
	}
	if err := s.persistVessel(ctx, well); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}
	return s.motion.MoveToSafePosition(ctx)
}

// PurgePipette empties whatever the tip still holds into waste and resets
// the tracker. Called before a run when the previous one died mid-stroke.
func (s *Service) PurgePipette(ctx context.Context, waste *vessel.WasteVial, rate decimal.Decimal) error {
	liquid := s.tip.LiquidVolume()
	if s.tip.Volume.IsZero() {
		return nil
	}
	if err := waste.CheckDeposit(liquid); err != nil {
		return err
	}

	pos := waste.Position()
	if err := s.motion.SafeMoveTo(ctx, pos.X, pos.Y, s.dispenseHeight(waste), ToolPipette); err != nil {
		return err
	}
	air := vessel.Round(s.tip.Volume.Sub(liquid))
	if err := s.pump.Dispense(ctx, liquid, rate, air); err != nil {
		return err
	}
	if liquid.IsPositive() {
		purged, err := s.tip.RemoveLiquid(liquid)
		if err != nil {
			return err
		}
		if err := waste.Deposit(purged); err != nil {
			return err
		}
	}
	s.tip.Reset()
	s.logger.Info("pipette purged", zap.String("liquid_ul", liquid.String()))
	if err := s.persistVessel(ctx, waste); err != nil {
		return err
	}
	if err := s.persistTip(ctx); err != nil {
		return err
	}
	return s.motion.MoveToSafePosition(ctx)
}
