package vessel

import "context"

// StockRepository persists stock vial state. Saves append a history row;
// reads return the latest row per position.
type StockRepository interface {
	FindByPosition(ctx context.Context, position string) (*StockVial, error)
	FindAll(ctx context.Context) ([]StockVial, error)
	Save(ctx context.Context, vial *StockVial) error
}

// WasteRepository persists waste vial state the same way.
type WasteRepository interface {
	FindByPosition(ctx context.Context, position string) (*WasteVial, error)
	FindAll(ctx context.Context) ([]WasteVial, error)
	Save(ctx context.Context, vial *WasteVial) error
}

// PlateRepository tracks which wellplate is mounted on the deck.
type PlateRepository interface {
	CurrentPlateID(ctx context.Context) (int, error)
}

// WellRepository persists well state per plate.
type WellRepository interface {
	Find(ctx context.Context, plateID int, wellID string) (*Well, error)
	FindByPlate(ctx context.Context, plateID int) ([]Well, error)
	// FindNextAvailable returns the lowest-numbered well still in the new
	// state on the plate, or shared.ErrNoAvailableWell.
	FindNextAvailable(ctx context.Context, plateID int) (*Well, error)
	Save(ctx context.Context, well *Well) error
}
