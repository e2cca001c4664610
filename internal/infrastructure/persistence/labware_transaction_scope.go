package persistence

import (
	"context"

	"github.com/panda-sdl/backend/internal/application/scheduling"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"gorm.io/gorm"
)

// GormTransactionScope implements scheduling.TransactionScope using GORM
// transactions. Well allocation and queue claims run inside one transaction
// so two workers cannot take the same well or queue entry.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos scheduling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Experiments returns the experiment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Experiments() experiment.Repository {
	return NewGormExperimentRepository(r.tx)
}

// Wells returns the well repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Wells() vessel.WellRepository {
	return NewGormWellRepository(r.tx)
}

// Plates returns the plate repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Plates() vessel.PlateRepository {
	return NewGormPlateRepository(r.tx)
}

// Queue returns the queue repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Queue() scheduling.QueueRepository {
	return NewGormQueueRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ scheduling.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ scheduling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
