package experiment

import (
	"github.com/panda-sdl/backend/internal/domain/shared"
)

const aggregateType = "Experiment"

// QueuedEvent is emitted when an experiment is bound to a well.
type QueuedEvent struct {
	shared.BaseDomainEvent
	ExperimentName string `json:"experiment_name"`
	PlateID        int    `json:"plate_id"`
	WellID         string `json:"well_id"`
}

// NewQueuedEvent creates a QueuedEvent.
func NewQueuedEvent(e *Experiment, plateID int, wellID string) *QueuedEvent {
	return &QueuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("experiment.queued", aggregateType, e.ID),
		ExperimentName:  e.Name,
		PlateID:         plateID,
		WellID:          wellID,
	}
}

// CompletedEvent is emitted when an experiment finishes every stage.
type CompletedEvent struct {
	shared.BaseDomainEvent
	ExperimentName string `json:"experiment_name"`
}

// NewCompletedEvent creates a CompletedEvent.
func NewCompletedEvent(e *Experiment) *CompletedEvent {
	return &CompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("experiment.completed", aggregateType, e.ID),
		ExperimentName:  e.Name,
	}
}

// FailedEvent is emitted when an experiment enters the terminal error state.
// FailedDuring records the stage that was active when the failure happened.
type FailedEvent struct {
	shared.BaseDomainEvent
	ExperimentName string `json:"experiment_name"`
	FailedDuring   Status `json:"failed_during"`
}

// NewFailedEvent creates a FailedEvent.
func NewFailedEvent(e *Experiment, failedDuring Status) *FailedEvent {
	return &FailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("experiment.failed", aggregateType, e.ID),
		ExperimentName:  e.Name,
		FailedDuring:    failedDuring,
	}
}
