package pipette

import (
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
)

// Tracker is the persistent ledger of the single shared pipette tip. Volume
// counts everything inside the tip, air margins included; Held tracks liquid
// only, so LiquidVolume can differ from Volume while air gaps are in flight.
type Tracker struct {
	Capacity decimal.Decimal
	Volume   decimal.Decimal
	Held     vessel.Contents
	Uses     int
}

// NewTracker creates an empty tracker for a tip of the given capacity.
func NewTracker(capacity decimal.Decimal) (*Tracker, error) {
	if capacity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "pipette capacity must be positive")
	}
	return &Tracker{
		Capacity: capacity,
		Volume:   decimal.Zero,
		Held:     vessel.Contents{},
	}, nil
}

// LiquidVolume returns the tracked liquid inside the tip, excluding air.
func (t *Tracker) LiquidVolume() decimal.Decimal {
	return t.Held.Total()
}

// SpareCapacity returns how much more the tip can aspirate.
func (t *Tracker) SpareCapacity() decimal.Decimal {
	return vessel.Round(t.Capacity.Sub(t.Volume))
}

// CheckAspirate reports whether volume uL fits in the tip.
func (t *Tracker) CheckAspirate(volume decimal.Decimal) error {
	if volume.IsNegative() {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "aspiration volume cannot be negative")
	}
	if vessel.Round(t.Volume.Add(volume)).GreaterThan(t.Capacity) {
		return vessel.NewOverfillError("pipette tip", volume, t.Volume, t.Capacity)
	}
	return nil
}

// AddLiquid records an aspiration of liquid with the given composition.
func (t *Tracker) AddLiquid(contents vessel.Contents) error {
	total := contents.Total()
	if err := t.CheckAspirate(total); err != nil {
		return err
	}
	t.Held.Merge(contents)
	t.Volume = vessel.Round(t.Volume.Add(total))
	t.Uses++
	return nil
}

// AddAir records an aspiration of air (gap or drip stop margin).
func (t *Tracker) AddAir(volume decimal.Decimal) error {
	if err := t.CheckAspirate(volume); err != nil {
		return err
	}
	t.Volume = vessel.Round(t.Volume.Add(volume))
	return nil
}

// RemoveLiquid records a dispense of volume uL of liquid and returns its
// composition, reduced proportionally from the held mixture.
func (t *Tracker) RemoveLiquid(volume decimal.Decimal) (vessel.Contents, error) {
	if volume.IsNegative() {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "dispense volume cannot be negative")
	}
	liquid := t.LiquidVolume()
	if vessel.Round(liquid.Sub(volume)).IsNegative() {
		return nil, shared.NewDomainError(shared.ErrOverdraft.Code, fmt.Sprintf(
			"cannot dispense %s uL: pipette tip holds %s uL of liquid", volume.String(), liquid.String()))
	}
	removed := t.Held.Split(volume, liquid)
	for name, share := range removed {
		remaining := vessel.Round(t.Held[name].Sub(share))
		if remaining.IsPositive() {
			t.Held[name] = remaining
		} else {
			delete(t.Held, name)
		}
	}
	t.Volume = vessel.Round(t.Volume.Sub(volume))
	if t.Volume.IsNegative() {
		t.Volume = decimal.Zero
	}
	return removed, nil
}

// Vent records a blowout of air, clamping at an empty tip.
func (t *Tracker) Vent(volume decimal.Decimal) {
	t.Volume = vessel.Round(t.Volume.Sub(volume))
	if t.Volume.IsNegative() {
		t.Volume = decimal.Zero
	}
}

// Reset empties the tracker after a purge.
func (t *Tracker) Reset() {
	t.Volume = decimal.Zero
	t.Held = vessel.Contents{}
}
