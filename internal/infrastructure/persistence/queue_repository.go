package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/application/scheduling"
	"gorm.io/gorm"
)

// GormQueueRepository implements scheduling.QueueRepository over the
// experiment_queue view, which joins experiments to the latest well history
// row and keeps only wells in the queued state.
type GormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository creates a new GormQueueRepository
func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// queueRow mirrors the experiment_queue view columns.
type queueRow struct {
	ExperimentID uuid.UUID `gorm:"column:experiment_id"`
	Name         string    `gorm:"column:name"`
	Priority     int       `gorm:"column:priority"`
	PlateID      int       `gorm:"column:plate_id"`
	WellID       string    `gorm:"column:well_id"`
	ProjectID    int       `gorm:"column:project_id"`
	QueuedAt     time.Time `gorm:"column:queued_at"`
}

// List returns the queue ordered by priority, then age, then experiment id.
// Experiment ids are random UUIDs, so queued_at carries the creation order;
// the trailing id sort only makes equal-timestamp rows deterministic.
func (r *GormQueueRepository) List(ctx context.Context) ([]scheduling.QueueEntry, error) {
	var rows []queueRow
	err := r.db.WithContext(ctx).
		Table("experiment_queue").
		Order("priority ASC, queued_at ASC, experiment_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]scheduling.QueueEntry, len(rows))
	for i, row := range rows {
		entries[i] = scheduling.QueueEntry{
			ExperimentID: row.ExperimentID,
			Name:         row.Name,
			Priority:     row.Priority,
			PlateID:      row.PlateID,
			WellID:       row.WellID,
			ProjectID:    row.ProjectID,
			QueuedAt:     row.QueuedAt,
		}
	}
	return entries, nil
}

// Ensure interface is implemented
var _ scheduling.QueueRepository = (*GormQueueRepository)(nil)
