package persistence

import (
	"context"
	"errors"

	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPipetteRepository implements pipette.Repository over the append-only
// pipette_status table. The latest row restores the tip ledger on startup.
type GormPipetteRepository struct {
	db *gorm.DB
}

// NewGormPipetteRepository creates a new GormPipetteRepository
func NewGormPipetteRepository(db *gorm.DB) *GormPipetteRepository {
	return &GormPipetteRepository{db: db}
}

// Load returns the most recent tip snapshot.
func (r *GormPipetteRepository) Load(ctx context.Context) (*pipette.Tracker, error) {
	var row models.PipetteStatusModel
	err := r.db.WithContext(ctx).Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// Save appends a snapshot of the tip ledger.
func (r *GormPipetteRepository) Save(ctx context.Context, tracker *pipette.Tracker) error {
	return r.db.WithContext(ctx).Create(models.PipetteStatusFromDomain(tracker)).Error
}

// Ensure interface is implemented
var _ pipette.Repository = (*GormPipetteRepository)(nil)
