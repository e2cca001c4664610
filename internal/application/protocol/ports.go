package protocol

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tool selects which head-mounted tool a motion targets, since the pipette
// tip and the electrode carry different z offsets.
type Tool string

const (
	ToolPipette   Tool = "pipette"
	ToolElectrode Tool = "electrode"
)

// Motion drives the gantry. Implementations must route around labware on
// their own; callers only name the target.
type Motion interface {
	SafeMoveTo(ctx context.Context, x, y, z float64, tool Tool) error
	MoveToSafePosition(ctx context.Context) error
}

// Pump drives the syringe pump attached to the pipette tip. Volumes are in
// microliters, rates in milliliters per minute. Blowout is extra plunger
// travel past the dispense volume.
type Pump interface {
	Aspirate(ctx context.Context, volume, rate decimal.Decimal) error
	Dispense(ctx context.Context, volume, rate, blowout decimal.Decimal) error
}
