package run

import (
	"context"

	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/vessel"
)

// OCPResult is the outcome of an open circuit potential check.
type OCPResult struct {
	Passed        bool
	FinalVoltageV float64
}

// StepResult carries the measured values of an electrochemical step, one
// entry per result type.
type StepResult struct {
	Values map[string]string
}

// Potentiostat drives the electrochemistry channel.
type Potentiostat interface {
	RunOCP(ctx context.Context, params experiment.OCPParams) (OCPResult, error)
	RunCA(ctx context.Context, params experiment.CAParams) (StepResult, error)
	RunCV(ctx context.Context, params experiment.CVParams) (StepResult, error)
}

// Dequeuer hands out the next experiment to run and takes starved ones back.
// Implemented by the scheduler.
type Dequeuer interface {
	Dequeue(ctx context.Context) (*experiment.Experiment, *vessel.Well, error)
	Demote(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error
}
