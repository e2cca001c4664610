package vessel

import (
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockVial is a depletion-only source vessel. Its declared composition never
// changes: withdrawals reduce the held volume and report the proportional
// share of the composition, deposits are rejected.
type StockVial struct {
	PositionLabel string
	Name          string
	Volume        decimal.Decimal
	Capacity      decimal.Decimal
	Density       decimal.Decimal
	ViscosityCP   decimal.Decimal
	Composition   Contents
	Coords        Coordinates
}

// NewStockVial creates a stock vial holding volume uL of the named solution.
func NewStockVial(position, name string, volume, capacity decimal.Decimal, coords Coordinates) (*StockVial, error) {
	if position == "" || name == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "stock vial position and name are required")
	}
	if capacity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "stock vial capacity must be positive")
	}
	if volume.IsNegative() || volume.GreaterThan(capacity) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code,
			fmt.Sprintf("stock vial volume %s must be within [0, %s]", volume.String(), capacity.String()))
	}
	return &StockVial{
		PositionLabel: position,
		Name:          name,
		Volume:        Round(volume),
		Capacity:      capacity,
		Density:       decimal.NewFromInt(1),
		ViscosityCP:   decimal.NewFromInt(1),
		Composition:   Contents{name: Round(volume)},
		Coords:        coords,
	}, nil
}

func (v *StockVial) Label() string                   { return v.PositionLabel }
func (v *StockVial) Kind() Kind                      { return KindStock }
func (v *StockVial) CurrentVolume() decimal.Decimal  { return v.Volume }
func (v *StockVial) MaxCapacity() decimal.Decimal    { return v.Capacity }
func (v *StockVial) CurrentContents() Contents       { return v.Composition.Clone() }
func (v *StockVial) Position() Coordinates           { return v.Coords }

// CheckDeposit always fails: stock vials only deplete.
func (v *StockVial) CheckDeposit(_ decimal.Decimal) error {
	return shared.NewDomainError(shared.ErrInvalidState.Code,
		fmt.Sprintf("stock vial %s does not accept deposits", v.PositionLabel))
}

// CheckWithdraw reports whether volume uL can be drawn.
func (v *StockVial) CheckWithdraw(volume decimal.Decimal) error {
	return checkWithdraw(v.PositionLabel, volume, v.Volume)
}

// Deposit is rejected for stock vials.
func (v *StockVial) Deposit(_ Contents) error {
	return v.CheckDeposit(decimal.Zero)
}

// Withdraw draws volume uL. The declared composition is untouched; the
// returned contents are its proportional share of the withdrawal.
func (v *StockVial) Withdraw(volume decimal.Decimal) (Contents, error) {
	if err := v.CheckWithdraw(volume); err != nil {
		return nil, err
	}
	removed := v.Composition.Split(volume, v.Composition.Total())
	v.Volume = Round(v.Volume.Sub(volume))
	return removed, nil
}

// Refill tops the vial back up to capacity, for operator restocking.
func (v *StockVial) Refill() {
	v.Volume = v.Capacity
	v.Composition = Contents{v.Name: v.Capacity}
}

var _ Vessel = (*StockVial)(nil)
