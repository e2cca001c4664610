package scheduling

import (
	"context"

	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/vessel"
)

// TransactionScope runs scheduling work atomically. Allocation touches the
// experiment and its well together, and both rows commit or neither does.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides repository access scoped to one
// transaction. The queue is a view over experiments and well history, never
// separate storage, so reading it inside the transaction sees exactly the
// rows the transaction can claim.
type TransactionalRepositories interface {
	Experiments() experiment.Repository
	Wells() vessel.WellRepository
	Plates() vessel.PlateRepository
	Queue() QueueRepository
}

// NoOpTransactionScope runs the function without a real transaction, for
// tests and the simulation profile.
type NoOpTransactionScope struct {
	experiments experiment.Repository
	wells       vessel.WellRepository
	plates      vessel.PlateRepository
	queue       QueueRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given
// repositories.
func NewNoOpTransactionScope(
	experiments experiment.Repository,
	wells vessel.WellRepository,
	plates vessel.PlateRepository,
	queue QueueRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		experiments: experiments,
		wells:       wells,
		plates:      plates,
		queue:       queue,
	}
}

// Execute runs the function directly.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Experiments returns the experiment repository.
func (s *NoOpTransactionScope) Experiments() experiment.Repository { return s.experiments }

// Wells returns the well repository.
func (s *NoOpTransactionScope) Wells() vessel.WellRepository { return s.wells }

// Plates returns the plate repository.
func (s *NoOpTransactionScope) Plates() vessel.PlateRepository { return s.plates }

// Queue returns the queue view.
func (s *NoOpTransactionScope) Queue() QueueRepository { return s.queue }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
