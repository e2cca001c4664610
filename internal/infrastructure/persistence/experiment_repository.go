package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormExperimentRepository implements experiment.Repository using GORM
type GormExperimentRepository struct {
	db *gorm.DB
}

// NewGormExperimentRepository creates a new GormExperimentRepository
func NewGormExperimentRepository(db *gorm.DB) *GormExperimentRepository {
	return &GormExperimentRepository{db: db}
}

// FindByID finds an experiment by its ID
func (r *GormExperimentRepository) FindByID(ctx context.Context, id uuid.UUID) (*experiment.Experiment, error) {
	var exp experiment.Experiment
	if err := r.db.WithContext(ctx).First(&exp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &exp, nil
}

// FindAll returns experiments with pagination, newest first by default. The
// status filter key narrows to one lifecycle state; sort input is validated
// against a whitelist before reaching the query.
func (r *GormExperimentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]experiment.Experiment, int64, error) {
	applyFilters := func(query *gorm.DB) *gorm.DB {
		if status, ok := filter.Filters["status"]; ok {
			query = query.Where("status = ?", status)
		}
		return query
	}

	var total int64
	countQuery := applyFilters(r.db.WithContext(ctx).Model(&experiment.Experiment{}))
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ExperimentSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query := applyFilters(r.db.WithContext(ctx).Model(&experiment.Experiment{})).
		Order(orderBy + " " + orderDir)
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var experiments []experiment.Experiment
	if err := query.Find(&experiments).Error; err != nil {
		return nil, 0, err
	}
	return experiments, total, nil
}

// Save persists the experiment. Updates carry the incremented version and
// fail when another transaction got there first.
func (r *GormExperimentRepository) Save(ctx context.Context, exp *experiment.Experiment) error {
	if exp.Version <= 1 {
		return r.db.WithContext(ctx).Create(exp).Error
	}

	result := r.db.WithContext(ctx).
		Model(exp).
		Where("id = ? AND version = ?", exp.ID, exp.Version-1).
		Updates(map[string]interface{}{
			"priority":    exp.Priority,
			"plate_id":    exp.PlateID,
			"well_id":     exp.WellID,
			"status":      exp.Status,
			"status_date": exp.StatusDate,
			"version":     exp.Version,
			"updated_at":  exp.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Allocation bumps the version before the first persist, so a
		// missing row means insert, not conflict.
		var count int64
		if err := r.db.WithContext(ctx).Model(&experiment.Experiment{}).
			Where("id = ?", exp.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return r.db.WithContext(ctx).Create(exp).Error
		}
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
			"Experiment was modified by another transaction")
	}
	return nil
}

// GormResultRepository implements experiment.ResultRepository using GORM
type GormResultRepository struct {
	db *gorm.DB
}

// NewGormResultRepository creates a new GormResultRepository
func NewGormResultRepository(db *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: db}
}

// Append inserts one result row.
func (r *GormResultRepository) Append(ctx context.Context, result *experiment.Result) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// FindByExperiment returns all results for an experiment in insertion order.
func (r *GormResultRepository) FindByExperiment(ctx context.Context, experimentID uuid.UUID) ([]experiment.Result, error) {
	var results []experiment.Result
	err := r.db.WithContext(ctx).
		Where("experiment_id = ?", experimentID).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Ensure interfaces are implemented
var _ experiment.Repository = (*GormExperimentRepository)(nil)
var _ experiment.ResultRepository = (*GormResultRepository)(nil)
