package protocol

import "github.com/shopspring/decimal"

// Constants are the pipetting margins, in microliters unless noted. They are
// loaded from configuration once and never change mid-run.
type Constants struct {
	// AirGap is aspirated before the liquid so the tip can blow the last
	// drop out on dispense.
	AirGap decimal.Decimal
	// DripStop is pulled after leaving the source so liquid does not hang
	// from the tip during travel.
	DripStop decimal.Decimal
	// PurgeVolume is the extra liquid carried in reverse pipetting and
	// discarded after each dispense.
	PurgeVolume decimal.Decimal
	// WellOverdraw is extra liquid pulled when aspirating from a well, to
	// cover the meniscus chasing the tip.
	WellOverdraw decimal.Decimal
	// StockMarginFraction of a stock vial's capacity is treated as
	// unreachable dead volume by the solution selector.
	StockMarginFraction decimal.Decimal
	// ClearOffsetMM shifts alternating clearing strokes off the well
	// center, in millimeters.
	ClearOffsetMM float64
	// VialClearanceMM keeps the tip off a vial floor, in millimeters.
	VialClearanceMM float64
}

// DefaultConstants returns the margins used by the bench rig.
func DefaultConstants() Constants {
	return Constants{
		AirGap:              decimal.NewFromInt(20),
		DripStop:            decimal.NewFromInt(5),
		PurgeVolume:         decimal.NewFromInt(10),
		WellOverdraw:        decimal.NewFromInt(20),
		StockMarginFraction: decimal.NewFromFloat(0.1),
		ClearOffsetMM:       1.5,
		VialClearanceMM:     2.0,
	}
}
