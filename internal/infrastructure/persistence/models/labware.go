package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
)

// Vial kinds as stored in vial_history.
const (
	VialKindStock = "stock"
	VialKindWaste = "waste"
)

// VialHistoryModel is one append-only snapshot of a deck vial. Every save
// inserts a row; the latest row per position is the current state.
type VialHistoryModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Position  string          `gorm:"size:16;not null;index:idx_vial_history_position"`
	Kind      string          `gorm:"size:8;not null;index"`
	Name      string          `gorm:"size:64;not null"`
	Volume    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Capacity  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Density   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1"`
	Viscosity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1"`
	Contents  vessel.Contents `gorm:"type:json;not null"`
	X         float64         `gorm:"not null"`
	Y         float64         `gorm:"not null"`
	ZTop      float64         `gorm:"not null"`
	ZBottom   float64         `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (VialHistoryModel) TableName() string {
	return "vial_history"
}

// ToStockDomain converts the snapshot to a stock vial.
func (m *VialHistoryModel) ToStockDomain() *vessel.StockVial {
	return &vessel.StockVial{
		PositionLabel: m.Position,
		Name:          m.Name,
		Volume:        m.Volume,
		Capacity:      m.Capacity,
		Density:       m.Density,
		ViscosityCP:   m.Viscosity,
		Composition:   m.Contents.Clone(),
		Coords:        vessel.Coordinates{X: m.X, Y: m.Y, ZTop: m.ZTop, ZBottom: m.ZBottom},
	}
}

// ToWasteDomain converts the snapshot to a waste vial.
func (m *VialHistoryModel) ToWasteDomain() *vessel.WasteVial {
	return &vessel.WasteVial{
		PositionLabel: m.Position,
		Name:          m.Name,
		Volume:        m.Volume,
		Capacity:      m.Capacity,
		Held:          m.Contents.Clone(),
		Coords:        vessel.Coordinates{X: m.X, Y: m.Y, ZTop: m.ZTop, ZBottom: m.ZBottom},
	}
}

// VialHistoryFromStock builds a new snapshot row for a stock vial.
func VialHistoryFromStock(v *vessel.StockVial) *VialHistoryModel {
	return &VialHistoryModel{
		Position:  v.PositionLabel,
		Kind:      VialKindStock,
		Name:      v.Name,
		Volume:    v.Volume,
		Capacity:  v.Capacity,
		Density:   v.Density,
		Viscosity: v.ViscosityCP,
		Contents:  v.Composition.Clone(),
		X:         v.Coords.X,
		Y:         v.Coords.Y,
		ZTop:      v.Coords.ZTop,
		ZBottom:   v.Coords.ZBottom,
		CreatedAt: time.Now(),
	}
}

// VialHistoryFromWaste builds a new snapshot row for a waste vial.
func VialHistoryFromWaste(v *vessel.WasteVial) *VialHistoryModel {
	return &VialHistoryModel{
		Position:  v.PositionLabel,
		Kind:      VialKindWaste,
		Name:      v.Name,
		Volume:    v.Volume,
		Capacity:  v.Capacity,
		Density:   decimal.NewFromInt(1),
		Viscosity: decimal.NewFromInt(1),
		Contents:  v.Held.Clone(),
		X:         v.Coords.X,
		Y:         v.Coords.Y,
		ZTop:      v.Coords.ZTop,
		ZBottom:   v.Coords.ZBottom,
		CreatedAt: time.Now(),
	}
}

// WellHistoryModel is one append-only snapshot of a well, keyed by plate and
// well position within the plate.
type WellHistoryModel struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"`
	PlateID      int             `gorm:"not null;index:idx_well_history_plate_well,priority:1"`
	WellID       string          `gorm:"size:8;not null;index:idx_well_history_plate_well,priority:2"`
	Status       string          `gorm:"size:32;not null;index"`
	StatusDate   time.Time       `gorm:"not null"`
	ExperimentID *uuid.UUID      `gorm:"type:uuid;index"`
	ProjectID    int             `gorm:"not null;default:0"`
	Volume       decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Capacity     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Contents     vessel.Contents `gorm:"type:json;not null"`
	X            float64         `gorm:"not null"`
	Y            float64         `gorm:"not null"`
	ZTop         float64         `gorm:"not null"`
	ZBottom      float64         `gorm:"not null"`
	RadiusMM     float64         `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WellHistoryModel) TableName() string {
	return "well_history"
}

// ToDomain converts the snapshot to a well.
func (m *WellHistoryModel) ToDomain() *vessel.Well {
	var experimentID *uuid.UUID
	if m.ExperimentID != nil {
		id := *m.ExperimentID
		experimentID = &id
	}
	return &vessel.Well{
		PlateID:      m.PlateID,
		WellID:       m.WellID,
		Status:       m.Status,
		StatusDate:   m.StatusDate,
		ExperimentID: experimentID,
		ProjectID:    m.ProjectID,
		Volume:       m.Volume,
		Capacity:     m.Capacity,
		Held:         m.Contents.Clone(),
		Coords:       vessel.Coordinates{X: m.X, Y: m.Y, ZTop: m.ZTop, ZBottom: m.ZBottom},
		RadiusMM:     m.RadiusMM,
	}
}

// WellHistoryFromDomain builds a new snapshot row for a well.
func WellHistoryFromDomain(w *vessel.Well) *WellHistoryModel {
	var experimentID *uuid.UUID
	if w.ExperimentID != nil {
		id := *w.ExperimentID
		experimentID = &id
	}
	return &WellHistoryModel{
		PlateID:      w.PlateID,
		WellID:       w.WellID,
		Status:       w.Status,
		StatusDate:   w.StatusDate,
		ExperimentID: experimentID,
		ProjectID:    w.ProjectID,
		Volume:       w.Volume,
		Capacity:     w.Capacity,
		Contents:     w.Held.Clone(),
		X:            w.Coords.X,
		Y:            w.Coords.Y,
		ZTop:         w.Coords.ZTop,
		ZBottom:      w.Coords.ZBottom,
		RadiusMM:     w.RadiusMM,
		CreatedAt:    time.Now(),
	}
}

// WellplateModel identifies a mounted wellplate. At most one row is current.
type WellplateModel struct {
	ID        int       `gorm:"primaryKey;autoIncrement"`
	Label     string    `gorm:"size:64;not null"`
	Current   bool      `gorm:"not null;default:false;index"`
	MountedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WellplateModel) TableName() string {
	return "wellplates"
}

// PipetteStatusModel is one append-only snapshot of the shared tip ledger.
type PipetteStatusModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Capacity  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Volume    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Contents  vessel.Contents `gorm:"type:json;not null"`
	Uses      int             `gorm:"not null;default:0"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PipetteStatusModel) TableName() string {
	return "pipette_status"
}

// ToDomain converts the snapshot to a tracker.
func (m *PipetteStatusModel) ToDomain() *pipette.Tracker {
	return &pipette.Tracker{
		Capacity: m.Capacity,
		Volume:   m.Volume,
		Held:     m.Contents.Clone(),
		Uses:     m.Uses,
	}
}

// PipetteStatusFromDomain builds a new snapshot row for the tracker.
func PipetteStatusFromDomain(t *pipette.Tracker) *PipetteStatusModel {
	return &PipetteStatusModel{
		Capacity:  t.Capacity,
		Volume:    t.Volume,
		Contents:  t.Held.Clone(),
		Uses:      t.Uses,
		CreatedAt: time.Now(),
	}
}
