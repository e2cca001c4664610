package experiment

import (
	"time"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/shared"
)

// Result is one measured value from a run, stored one row per value so a
// partially completed run keeps everything recorded before the failure.
type Result struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	ExperimentID uuid.UUID `gorm:"type:uuid;not null;index"`
	ResultType   string    `gorm:"size:64;not null"`
	ResultValue  string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Result) TableName() string {
	return "experiment_results"
}

// NewResult creates a result row for the experiment.
func NewResult(experimentID uuid.UUID, resultType, resultValue string) (*Result, error) {
	if experimentID == uuid.Nil {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "experiment id is required")
	}
	if resultType == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "result type is required")
	}
	return &Result{
		ExperimentID: experimentID,
		ResultType:   resultType,
		ResultValue:  resultValue,
		CreatedAt:    time.Now(),
	}, nil
}
