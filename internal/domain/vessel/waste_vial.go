package vessel

import (
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WasteVial is an accumulation-only sink vessel. Deposits merge into its
// contents additively; withdrawals are rejected.
type WasteVial struct {
	PositionLabel string
	Name          string
	Volume        decimal.Decimal
	Capacity      decimal.Decimal
	Held          Contents
	Coords        Coordinates
}

// NewWasteVial creates an empty waste vial at the given deck position.
func NewWasteVial(position string, capacity decimal.Decimal, coords Coordinates) (*WasteVial, error) {
	if position == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "waste vial position is required")
	}
	if capacity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "waste vial capacity must be positive")
	}
	return &WasteVial{
		PositionLabel: position,
		Name:          "waste",
		Volume:        decimal.Zero,
		Capacity:      capacity,
		Held:          Contents{},
		Coords:        coords,
	}, nil
}

func (v *WasteVial) Label() string                  { return v.PositionLabel }
func (v *WasteVial) Kind() Kind                     { return KindWaste }
func (v *WasteVial) CurrentVolume() decimal.Decimal { return v.Volume }
func (v *WasteVial) MaxCapacity() decimal.Decimal   { return v.Capacity }
func (v *WasteVial) CurrentContents() Contents      { return v.Held.Clone() }
func (v *WasteVial) Position() Coordinates          { return v.Coords }

// CheckDeposit reports whether volume uL fits below capacity.
func (v *WasteVial) CheckDeposit(volume decimal.Decimal) error {
	return checkDeposit(v.PositionLabel, volume, v.Volume, v.Capacity)
}

// CheckWithdraw always fails: waste vials only accumulate.
func (v *WasteVial) CheckWithdraw(_ decimal.Decimal) error {
	return shared.NewDomainError(shared.ErrInvalidState.Code,
		fmt.Sprintf("waste vial %s does not allow withdrawals", v.PositionLabel))
}

// Deposit merges the contents into the vial.
func (v *WasteVial) Deposit(contents Contents) error {
	total := contents.Total()
	if err := v.CheckDeposit(total); err != nil {
		return err
	}
	v.Held.Merge(contents)
	v.Volume = Round(v.Volume.Add(total))
	return nil
}

// Withdraw is rejected for waste vials.
func (v *WasteVial) Withdraw(_ decimal.Decimal) (Contents, error) {
	return nil, v.CheckWithdraw(decimal.Zero)
}

// Empty discards all held liquid, for operator disposal.
func (v *WasteVial) Empty() {
	v.Volume = decimal.Zero
	v.Held = Contents{}
}

var _ Vessel = (*WasteVial)(nil)
