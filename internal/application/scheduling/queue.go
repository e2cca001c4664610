package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one row of the scheduling queue: an experiment whose well is
// in the queued state. The queue is derived from experiments joined with the
// latest well history, so an entry exists exactly while its well says queued.
type QueueEntry struct {
	ExperimentID uuid.UUID
	Name         string
	Priority     int
	PlateID      int
	WellID       string
	ProjectID    int
	QueuedAt     time.Time
}

// QueueRepository reads the queue view ordered by priority ascending, then
// queue age, then experiment id.
type QueueRepository interface {
	List(ctx context.Context) ([]QueueEntry, error)
}
