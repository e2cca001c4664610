package integration

import (
	"context"
	"testing"

	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// experimentQueueViewSQL recreates the experiment_queue view in SQLite
// dialect. The production migration uses DISTINCT ON, which SQLite lacks, so
// the latest well row is selected with a correlated MAX(id) instead.
const experimentQueueViewSQL = `
CREATE VIEW experiment_queue AS
SELECT
    e.id         AS experiment_id,
    e.name       AS name,
    e.priority   AS priority,
    w.plate_id   AS plate_id,
    w.well_id    AS well_id,
    w.project_id AS project_id,
    e.created_at AS queued_at
FROM experiments e
JOIN well_history w ON w.experiment_id = e.id
 AND w.id = (
    SELECT MAX(wh.id) FROM well_history wh
    WHERE wh.plate_id = w.plate_id AND wh.well_id = w.well_id
 )
WHERE w.status = 'queued'
  AND e.status = 'queued'
`

// newTestDB opens an in-memory SQLite database with the full schema. The
// pool is pinned to one connection so every query sees the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.WellplateModel{},
		&models.WellHistoryModel{},
		&models.VialHistoryModel{},
		&models.PipetteStatusModel{},
		&experiment.Experiment{},
		&experiment.Result{},
	))
	require.NoError(t, db.Exec(experimentQueueViewSQL).Error)

	return db
}

// seedPlate mounts a plate and returns its id.
func seedPlate(t *testing.T, db *gorm.DB, label string) int {
	t.Helper()
	plate := models.WellplateModel{Label: label, Current: true}
	require.NoError(t, db.Create(&plate).Error)
	return plate.ID
}

// seedWells creates empty 2500 uL wells at the given positions.
func seedWells(t *testing.T, db *gorm.DB, plateID int, wellIDs ...string) {
	t.Helper()
	repo := persistence.NewGormWellRepository(db)
	for i, wellID := range wellIDs {
		well, err := vessel.NewWell(plateID, wellID, decimal.NewFromInt(2500), 3.4,
			vessel.Coordinates{X: float64(10 * i), Y: 20, ZTop: 5, ZBottom: -6})
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), well))
	}
}

// seedStock creates a stock vial filled with the named solution.
func seedStock(t *testing.T, db *gorm.DB, position, name string, volume, capacity int64) {
	t.Helper()
	repo := persistence.NewGormStockRepository(db)
	vial, err := vessel.NewStockVial(position, name,
		decimal.NewFromInt(volume), decimal.NewFromInt(capacity),
		vessel.Coordinates{X: 100, Y: 50, ZTop: 10, ZBottom: -40})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), vial))
}

// seedWaste creates an empty waste vial.
func seedWaste(t *testing.T, db *gorm.DB, position string, capacity int64) {
	t.Helper()
	repo := persistence.NewGormWasteRepository(db)
	vial, err := vessel.NewWasteVial(position, decimal.NewFromInt(capacity),
		vessel.Coordinates{X: 120, Y: 50, ZTop: 10, ZBottom: -40})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), vial))
}

// seedPipette writes the initial tip ledger and returns the live tracker.
func seedPipette(t *testing.T, db *gorm.DB, capacity int64) *pipette.Tracker {
	t.Helper()
	repo := persistence.NewGormPipetteRepository(db)
	tracker, err := pipette.NewTracker(decimal.NewFromInt(capacity))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tracker))
	return tracker
}
