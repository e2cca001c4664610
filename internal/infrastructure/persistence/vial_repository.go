package persistence

import (
	"context"
	"errors"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockRepository implements StockRepository over the append-only
// vial_history table. Saves insert a new snapshot row; reads resolve the
// latest row per deck position.
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// FindByPosition returns the current state of the stock vial at a position.
func (r *GormStockRepository) FindByPosition(ctx context.Context, position string) (*vessel.StockVial, error) {
	row, err := latestVialRow(ctx, r.db, models.VialKindStock, position)
	if err != nil {
		return nil, err
	}
	return row.ToStockDomain(), nil
}

// FindAll returns the current state of every stock vial on the deck.
func (r *GormStockRepository) FindAll(ctx context.Context) ([]vessel.StockVial, error) {
	rows, err := latestVialRows(ctx, r.db, models.VialKindStock)
	if err != nil {
		return nil, err
	}
	vials := make([]vessel.StockVial, len(rows))
	for i := range rows {
		vials[i] = *rows[i].ToStockDomain()
	}
	return vials, nil
}

// Save appends a snapshot of the vial state.
func (r *GormStockRepository) Save(ctx context.Context, vial *vessel.StockVial) error {
	return r.db.WithContext(ctx).Create(models.VialHistoryFromStock(vial)).Error
}

// GormWasteRepository implements WasteRepository over the same history table.
type GormWasteRepository struct {
	db *gorm.DB
}

// NewGormWasteRepository creates a new GormWasteRepository
func NewGormWasteRepository(db *gorm.DB) *GormWasteRepository {
	return &GormWasteRepository{db: db}
}

// FindByPosition returns the current state of the waste vial at a position.
func (r *GormWasteRepository) FindByPosition(ctx context.Context, position string) (*vessel.WasteVial, error) {
	row, err := latestVialRow(ctx, r.db, models.VialKindWaste, position)
	if err != nil {
		return nil, err
	}
	return row.ToWasteDomain(), nil
}

// FindAll returns the current state of every waste vial on the deck.
func (r *GormWasteRepository) FindAll(ctx context.Context) ([]vessel.WasteVial, error) {
	rows, err := latestVialRows(ctx, r.db, models.VialKindWaste)
	if err != nil {
		return nil, err
	}
	vials := make([]vessel.WasteVial, len(rows))
	for i := range rows {
		vials[i] = *rows[i].ToWasteDomain()
	}
	return vials, nil
}

// Save appends a snapshot of the vial state.
func (r *GormWasteRepository) Save(ctx context.Context, vial *vessel.WasteVial) error {
	return r.db.WithContext(ctx).Create(models.VialHistoryFromWaste(vial)).Error
}

// latestVialRow resolves the newest snapshot for one position.
func latestVialRow(ctx context.Context, db *gorm.DB, kind, position string) (*models.VialHistoryModel, error) {
	var row models.VialHistoryModel
	err := db.WithContext(ctx).
		Where("kind = ? AND position = ?", kind, position).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// latestVialRows resolves the newest snapshot per position for a kind.
func latestVialRows(ctx context.Context, db *gorm.DB, kind string) ([]models.VialHistoryModel, error) {
	sub := db.Model(&models.VialHistoryModel{}).
		Select("MAX(id)").
		Where("kind = ?", kind).
		Group("position")

	var rows []models.VialHistoryModel
	err := db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Ensure interfaces are implemented
var _ vessel.StockRepository = (*GormStockRepository)(nil)
var _ vessel.WasteRepository = (*GormWasteRepository)(nil)
