package vessel

import (
	"fmt"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Kind identifies the role a vessel plays on the deck.
type Kind string

const (
	KindStock Kind = "stock"
	KindWaste Kind = "waste"
	KindWell  Kind = "well"
)

// Coordinates locates a vessel on the deck, in millimeters.
type Coordinates struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ZTop    float64 `json:"z_top"`
	ZBottom float64 `json:"z_bottom"`
}

// Vessel is the common contract of every liquid container on the deck.
// Mutations are check-then-apply: a failed check leaves the vessel untouched.
type Vessel interface {
	Label() string
	Kind() Kind
	CurrentVolume() decimal.Decimal
	MaxCapacity() decimal.Decimal
	CurrentContents() Contents
	Position() Coordinates

	// CheckDeposit reports whether volume can be added without overfilling.
	CheckDeposit(volume decimal.Decimal) error
	// CheckWithdraw reports whether volume can be removed without overdrafting.
	CheckWithdraw(volume decimal.Decimal) error
	// Deposit adds the given contents to the vessel.
	Deposit(contents Contents) error
	// Withdraw removes volume and returns the composition of what came out.
	Withdraw(volume decimal.Decimal) (Contents, error)
}

// NewOverfillError describes a deposit that would exceed capacity.
func NewOverfillError(label string, volume, current, capacity decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(shared.ErrOverfill.Code, fmt.Sprintf(
		"cannot add %s uL to %s: %s of %s uL already held",
		volume.String(), label, current.String(), capacity.String()))
}

// NewOverdraftError describes a withdrawal that would exceed the held volume.
func NewOverdraftError(label string, volume, current decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(shared.ErrOverdraft.Code, fmt.Sprintf(
		"cannot remove %s uL from %s: only %s uL held",
		volume.String(), label, current.String()))
}

func checkDeposit(label string, volume, current, capacity decimal.Decimal) error {
	if volume.IsNegative() {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "deposit volume cannot be negative")
	}
	if Round(current.Add(volume)).GreaterThan(capacity) {
		return NewOverfillError(label, volume, current, capacity)
	}
	return nil
}

func checkWithdraw(label string, volume, current decimal.Decimal) error {
	if volume.IsNegative() {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "withdrawal volume cannot be negative")
	}
	if Round(current.Sub(volume)).IsNegative() {
		return NewOverdraftError(label, volume, current)
	}
	return nil
}
