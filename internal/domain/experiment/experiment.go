package experiment

import (
	"fmt"
	"strings"
	"time"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DemotedPriority is assigned when a run is pushed back for insufficient
// stock, placing it behind every normally prioritized experiment.
const DemotedPriority = 999

// Experiment is the aggregate root for one electrodeposition run. It owns
// the requested solutions, the stage parameters, the lifecycle status and
// the well binding once scheduled.
type Experiment struct {
	shared.BaseAggregateRoot
	Name       string          `gorm:"size:255;not null"`
	ProtocolID int             `gorm:"not null"`
	ProjectID  int             `gorm:"not null;index"`
	Priority   int             `gorm:"not null;default:10;index"`
	PlateID    *int            `gorm:"index"`
	WellID     *string         `gorm:"size:8;index"`
	PumpRate   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	Solutions  Solutions       `gorm:"type:json;not null"`
	Params     StageParams     `gorm:"type:json;not null"`
	Status     Status          `gorm:"size:32;not null;default:'new';index"`
	StatusDate time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Experiment) TableName() string {
	return "experiments"
}

// NewExperiment creates an experiment in the new state.
func NewExperiment(name string, protocolID, projectID, priority int, solutions Solutions, params StageParams) (*Experiment, error) {
	if name == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "experiment name is required")
	}
	if protocolID <= 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "protocol id must be positive")
	}
	if priority < 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "priority cannot be negative")
	}
	if len(solutions) == 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "at least one solution is required")
	}
	normalized := make(Solutions, len(solutions))
	for name, req := range solutions {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "solution names cannot be blank")
		}
		if req.Volume.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError(shared.ErrInvalidInput.Code,
				fmt.Sprintf("requested volume for %s must be positive", key))
		}
		normalized[key] = req
	}

	return &Experiment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		ProtocolID:        protocolID,
		ProjectID:         projectID,
		Priority:          priority,
		Solutions:         normalized,
		Params:            params,
		Status:            StatusNew,
		StatusDate:        time.Now(),
	}, nil
}

// TotalRequestedVolume sums the requested solution volumes.
func (e *Experiment) TotalRequestedVolume() decimal.Decimal {
	total := decimal.Zero
	for _, req := range e.Solutions {
		total = total.Add(req.Volume)
	}
	return total
}

// Queue binds the experiment to a well and moves it to the queued state.
func (e *Experiment) Queue(plateID int, wellID string) error {
	if e.Status != StatusNew && e.Status != StatusPending {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("experiment %s cannot be queued from status %s", e.Name, e.Status))
	}
	if wellID == "" {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "well id is required to queue")
	}
	e.PlateID = &plateID
	e.WellID = &wellID
	e.setStatus(StatusQueued)
	e.AddDomainEvent(NewQueuedEvent(e, plateID, wellID))
	return nil
}

// SetStatus moves the experiment into a stage status. Terminal states are
// sticky and reject further transitions.
func (e *Experiment) SetStatus(status Status) error {
	if !status.IsValid() {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("unknown status %q", status))
	}
	if e.Status.IsTerminal() {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("experiment %s is %s and cannot change status", e.Name, e.Status))
	}
	e.setStatus(status)
	return nil
}

// Fail moves the experiment into the terminal error state. Safe to call
// from any non-terminal state.
func (e *Experiment) Fail() {
	if e.Status.IsTerminal() {
		return
	}
	failedDuring := e.Status
	e.setStatus(StatusError)
	e.AddDomainEvent(NewFailedEvent(e, failedDuring))
}

// Complete marks a successful run.
func (e *Experiment) Complete() error {
	if e.Status.IsTerminal() {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("experiment %s is already %s", e.Name, e.Status))
	}
	e.setStatus(StatusComplete)
	e.AddDomainEvent(NewCompletedEvent(e))
	return nil
}

// Reprioritize changes where the experiment sits in the queue.
func (e *Experiment) Reprioritize(priority int) error {
	if priority < 0 {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "priority cannot be negative")
	}
	if e.Status.IsTerminal() {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("experiment %s is %s and cannot be reprioritized", e.Name, e.Status))
	}
	e.Priority = priority
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	return nil
}

// Demote pushes the experiment to the back of the queue after an
// insufficient stock check, returning it to the queued state.
func (e *Experiment) Demote() error {
	if e.Status.IsTerminal() {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("experiment %s is %s and cannot be requeued", e.Name, e.Status))
	}
	e.Priority = DemotedPriority
	e.setStatus(StatusQueued)
	return nil
}

func (e *Experiment) setStatus(status Status) {
	e.Status = status
	e.StatusDate = time.Now()
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
}
