package scheduling

import (
	"context"
	"errors"

	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"go.uber.org/zap"
)

// Allocator binds incoming experiments to wells on the current plate. Each
// allocation claims the well and queues the experiment in one transaction,
// so two concurrent requests can never share a well.
type Allocator struct {
	scope  TransactionScope
	events shared.EventPublisher
	logger *zap.Logger
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithAllocatorEvents publishes the experiment's domain events after each
// successful allocation.
func WithAllocatorEvents(pub shared.EventPublisher) AllocatorOption {
	return func(a *Allocator) {
		a.events = pub
	}
}

// NewAllocator creates an Allocator.
func NewAllocator(scope TransactionScope, logger *zap.Logger, opts ...AllocatorOption) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Allocator{scope: scope, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enqueue allocates a well for the experiment and moves it to the queued
// state. requestedWell may name a preferred well; when it is taken or blank
// the next available well on the plate is used instead. With no wells free
// the experiment is left untouched and shared.ErrNoAvailableWell comes back
// so the caller can apply backpressure.
func (a *Allocator) Enqueue(ctx context.Context, exp *experiment.Experiment, requestedWell string) error {
	err := a.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		plateID, err := repos.Plates().CurrentPlateID(ctx)
		if err != nil {
			return err
		}

		well, err := a.pickWell(ctx, repos, plateID, requestedWell)
		if err != nil {
			return err
		}

		if err := well.Assign(exp.ID, exp.ProjectID, string(experiment.StatusQueued)); err != nil {
			return err
		}
		if err := exp.Queue(plateID, well.WellID); err != nil {
			return err
		}
		if err := repos.Wells().Save(ctx, well); err != nil {
			return err
		}
		if err := repos.Experiments().Save(ctx, exp); err != nil {
			return err
		}

		a.logger.Info("experiment queued",
			zap.String("experiment", exp.Name),
			zap.Int("plate_id", plateID),
			zap.String("well_id", well.WellID),
			zap.Int("priority", exp.Priority))
		return nil
	})
	if err != nil {
		return err
	}
	a.publish(ctx, exp)
	return nil
}

// publish flushes the experiment's pending domain events. Event delivery is
// best effort once the allocation has committed.
func (a *Allocator) publish(ctx context.Context, exp *experiment.Experiment) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(ctx, exp.GetDomainEvents()...); err != nil {
		a.logger.Warn("failed to publish domain events",
			zap.String("experiment", exp.Name), zap.Error(err))
	}
	exp.ClearDomainEvents()
}

func (a *Allocator) pickWell(ctx context.Context, repos TransactionalRepositories, plateID int, requestedWell string) (*vessel.Well, error) {
	if requestedWell != "" {
		well, err := repos.Wells().Find(ctx, plateID, requestedWell)
		switch {
		case err == nil && well.Status == vessel.WellStatusNew:
			return well, nil
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
		a.logger.Debug("requested well unavailable, falling back",
			zap.String("well_id", requestedWell))
	}
	return repos.Wells().FindNextAvailable(ctx, plateID)
}
