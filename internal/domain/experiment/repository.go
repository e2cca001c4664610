package experiment

import (
	"context"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/shared"
)

// Repository persists experiment aggregates.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Experiment, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Experiment, int64, error)
	Save(ctx context.Context, exp *Experiment) error
}

// ResultRepository appends measured values for an experiment.
type ResultRepository interface {
	Append(ctx context.Context, result *Result) error
	FindByExperiment(ctx context.Context, experimentID uuid.UUID) ([]Result, error)
}
