package pipette

import "context"

// Repository persists the tip ledger. Every mutation is appended so the
// latest row survives a crash and restores the tracker on startup.
type Repository interface {
	Load(ctx context.Context) (*Tracker, error)
	Save(ctx context.Context, tracker *Tracker) error
}
