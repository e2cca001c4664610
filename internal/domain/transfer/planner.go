package transfer

import (
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
)

// Plan describes how a requested transfer volume is split across pipette
// strokes. A zero-repetition plan means nothing to do.
type Plan struct {
	Repetitions         int
	VolumePerRepetition decimal.Decimal
}

// IsNoOp reports whether the plan moves no liquid.
func (p Plan) IsNoOp() bool {
	return p.Repetitions == 0
}

// TotalVolume returns the liquid moved when every repetition completes.
func (p Plan) TotalVolume() decimal.Decimal {
	return vessel.Round(p.VolumePerRepetition.Mul(decimal.NewFromInt(int64(p.Repetitions))))
}

// NewPlan splits volume across the fewest equal strokes that fit the usable
// tip capacity, where reserve is tip volume kept back for the drip stop and
// any purge margin. Zero or negative volume plans a no-op.
func NewPlan(volume, capacity, reserve decimal.Decimal) (Plan, error) {
	if volume.LessThanOrEqual(decimal.Zero) {
		return Plan{Repetitions: 0, VolumePerRepetition: decimal.Zero}, nil
	}
	usable := capacity.Sub(reserve)
	if usable.LessThanOrEqual(decimal.Zero) {
		return Plan{}, shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf(
			"tip capacity %s uL leaves no room after a %s uL reserve", capacity.String(), reserve.String()))
	}
	reps := volume.Div(usable).Ceil().IntPart()
	perRep := vessel.Round(volume.Div(decimal.NewFromInt(reps)))
	return Plan{
		Repetitions:         int(reps),
		VolumePerRepetition: perRep,
	}, nil
}

// legalPairs holds every source-to-destination combination a transfer may use.
var legalPairs = map[vessel.Kind]map[vessel.Kind]bool{
	vessel.KindStock: {vessel.KindWell: true, vessel.KindWaste: true},
	vessel.KindWell:  {vessel.KindWaste: true},
}

// ValidatePairing rejects any source and destination combination other than
// stock to well, well to waste, and stock to waste.
func ValidatePairing(from, to vessel.Kind) error {
	if legalPairs[from][to] {
		return nil
	}
	return shared.NewDomainError(shared.ErrVesselPairing.Code, fmt.Sprintf(
		"cannot transfer from %s to %s: allowed pairs are stock to well, well to waste, stock to waste", from, to))
}

// ValidateClearPairing applies the well-clearing rule, which additionally
// forbids draining stock straight to waste.
func ValidateClearPairing(from, to vessel.Kind) error {
	if err := ValidatePairing(from, to); err != nil {
		return err
	}
	if from == vessel.KindStock && to == vessel.KindWaste {
		return shared.NewDomainError(shared.ErrVesselPairing.Code,
			"cannot clear from stock to waste: clearing only drains wells")
	}
	return nil
}
