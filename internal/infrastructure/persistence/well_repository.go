package persistence

import (
	"context"
	"errors"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWellRepository implements WellRepository over the append-only
// well_history table. The latest row per plate and well position is the
// current state.
type GormWellRepository struct {
	db *gorm.DB
}

// NewGormWellRepository creates a new GormWellRepository
func NewGormWellRepository(db *gorm.DB) *GormWellRepository {
	return &GormWellRepository{db: db}
}

// Find returns the current state of one well.
func (r *GormWellRepository) Find(ctx context.Context, plateID int, wellID string) (*vessel.Well, error) {
	var row models.WellHistoryModel
	err := r.db.WithContext(ctx).
		Where("plate_id = ? AND well_id = ?", plateID, wellID).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindByPlate returns the current state of every well on the plate, ordered
// by position.
func (r *GormWellRepository) FindByPlate(ctx context.Context, plateID int) ([]vessel.Well, error) {
	rows, err := r.latestRows(ctx, plateID)
	if err != nil {
		return nil, err
	}
	wells := make([]vessel.Well, len(rows))
	for i := range rows {
		wells[i] = *rows[i].ToDomain()
	}
	return wells, nil
}

// FindNextAvailable returns the lowest-positioned well still in the new
// state, or shared.ErrNoAvailableWell when the plate is exhausted.
func (r *GormWellRepository) FindNextAvailable(ctx context.Context, plateID int) (*vessel.Well, error) {
	sub := r.db.Model(&models.WellHistoryModel{}).
		Select("MAX(id)").
		Where("plate_id = ?", plateID).
		Group("well_id")

	var row models.WellHistoryModel
	err := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Where("status = ?", vessel.WellStatusNew).
		Order("LENGTH(well_id) ASC, well_id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNoAvailableWell
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// Save appends a snapshot of the well state.
func (r *GormWellRepository) Save(ctx context.Context, well *vessel.Well) error {
	return r.db.WithContext(ctx).Create(models.WellHistoryFromDomain(well)).Error
}

func (r *GormWellRepository) latestRows(ctx context.Context, plateID int) ([]models.WellHistoryModel, error) {
	sub := r.db.Model(&models.WellHistoryModel{}).
		Select("MAX(id)").
		Where("plate_id = ?", plateID).
		Group("well_id")

	var rows []models.WellHistoryModel
	err := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("LENGTH(well_id) ASC, well_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GormPlateRepository implements PlateRepository over the wellplates table.
type GormPlateRepository struct {
	db *gorm.DB
}

// NewGormPlateRepository creates a new GormPlateRepository
func NewGormPlateRepository(db *gorm.DB) *GormPlateRepository {
	return &GormPlateRepository{db: db}
}

// CurrentPlateID returns the id of the plate mounted on the deck.
func (r *GormPlateRepository) CurrentPlateID(ctx context.Context) (int, error) {
	var plate models.WellplateModel
	err := r.db.WithContext(ctx).
		Where("current = ?", true).
		Order("id DESC").
		First(&plate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return plate.ID, nil
}

// Ensure interfaces are implemented
var _ vessel.WellRepository = (*GormWellRepository)(nil)
var _ vessel.PlateRepository = (*GormPlateRepository)(nil)
