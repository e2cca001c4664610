package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs all scheduling repositories with one mutex, so its scope
// behaves like a serializable transaction.
type memStore struct {
	mu          sync.Mutex
	experiments map[uuid.UUID]*experiment.Experiment
	wells       map[string]*vessel.Well
	plateID     int
}

func newMemStore(plateID, wellCount int) *memStore {
	s := &memStore{
		experiments: make(map[uuid.UUID]*experiment.Experiment),
		wells:       make(map[string]*vessel.Well),
		plateID:     plateID,
	}
	for i := 0; i < wellCount; i++ {
		id := fmt.Sprintf("A%d", i+1)
		well, err := vessel.NewWell(plateID, id, decimal.NewFromInt(300), 3.5, vessel.Coordinates{})
		if err != nil {
			panic(err)
		}
		s.wells[id] = well
	}
	return s
}

func (s *memStore) wellKeys() []string {
	keys := make([]string, 0, len(s.wells))
	for k := range s.wells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

type memScope struct{ store *memStore }

func (s *memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn(s)
}

func (s *memScope) Experiments() experiment.Repository { return (*memExperimentRepo)(s) }
func (s *memScope) Wells() vessel.WellRepository       { return (*memWellRepo)(s) }
func (s *memScope) Plates() vessel.PlateRepository     { return (*memPlateRepo)(s) }
func (s *memScope) Queue() QueueRepository             { return (*memQueueRepo)(s) }

type memExperimentRepo memScope

func (r *memExperimentRepo) FindByID(_ context.Context, id uuid.UUID) (*experiment.Experiment, error) {
	exp, ok := r.store.experiments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *exp
	return &clone, nil
}

func (r *memExperimentRepo) FindAll(_ context.Context, _ shared.Filter) ([]experiment.Experiment, int64, error) {
	out := make([]experiment.Experiment, 0, len(r.store.experiments))
	for _, exp := range r.store.experiments {
		out = append(out, *exp)
	}
	return out, int64(len(out)), nil
}

func (r *memExperimentRepo) Save(_ context.Context, exp *experiment.Experiment) error {
	clone := *exp
	r.store.experiments[exp.ID] = &clone
	return nil
}

type memWellRepo memScope

func (r *memWellRepo) Find(_ context.Context, _ int, wellID string) (*vessel.Well, error) {
	well, ok := r.store.wells[wellID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *well
	return &clone, nil
}

func (r *memWellRepo) FindByPlate(_ context.Context, _ int) ([]vessel.Well, error) {
	out := make([]vessel.Well, 0, len(r.store.wells))
	for _, key := range r.store.wellKeys() {
		out = append(out, *r.store.wells[key])
	}
	return out, nil
}

func (r *memWellRepo) FindNextAvailable(_ context.Context, _ int) (*vessel.Well, error) {
	for _, key := range r.store.wellKeys() {
		if r.store.wells[key].Status == vessel.WellStatusNew {
			clone := *r.store.wells[key]
			return &clone, nil
		}
	}
	return nil, shared.ErrNoAvailableWell
}

func (r *memWellRepo) Save(_ context.Context, well *vessel.Well) error {
	clone := *well
	r.store.wells[well.WellID] = &clone
	return nil
}

type memPlateRepo memScope

func (r *memPlateRepo) CurrentPlateID(_ context.Context) (int, error) {
	return r.store.plateID, nil
}

// memQueueRepo derives the queue from well and experiment state, the same
// way the SQL view does.
type memQueueRepo memScope

func (r *memQueueRepo) List(_ context.Context) ([]QueueEntry, error) {
	var entries []QueueEntry
	for _, key := range r.store.wellKeys() {
		well := r.store.wells[key]
		if well.Status != string(experiment.StatusQueued) || well.ExperimentID == nil {
			continue
		}
		exp, ok := r.store.experiments[*well.ExperimentID]
		if !ok {
			continue
		}
		entries = append(entries, QueueEntry{
			ExperimentID: exp.ID,
			Name:         exp.Name,
			Priority:     exp.Priority,
			PlateID:      well.PlateID,
			WellID:       well.WellID,
			ProjectID:    well.ProjectID,
			QueuedAt:     exp.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		if !entries[i].QueuedAt.Equal(entries[j].QueuedAt) {
			return entries[i].QueuedAt.Before(entries[j].QueuedAt)
		}
		return entries[i].ExperimentID.String() < entries[j].ExperimentID.String()
	})
	return entries, nil
}

func newTestExperiment(t *testing.T, name string, priority int) *experiment.Experiment {
	t.Helper()
	exp, err := experiment.NewExperiment(name, 1, 7, priority, experiment.Solutions{
		"edot": {Volume: decimal.NewFromInt(120)},
	}, experiment.StageParams{})
	require.NoError(t, err)
	return exp
}

func TestAllocator_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("honors a free requested well", func(t *testing.T) {
		store := newMemStore(1, 4)
		alloc := NewAllocator(&memScope{store: store}, nil)
		exp := newTestExperiment(t, "run_a", 10)

		require.NoError(t, alloc.Enqueue(ctx, exp, "A3"))

		assert.Equal(t, "A3", *exp.WellID)
		assert.Equal(t, experiment.StatusQueued, exp.Status)
		assert.Equal(t, string(experiment.StatusQueued), store.wells["A3"].Status)
		require.NotNil(t, store.wells["A3"].ExperimentID)
		assert.Equal(t, exp.ID, *store.wells["A3"].ExperimentID)
	})

	t.Run("falls back to next available when requested well is taken", func(t *testing.T) {
		store := newMemStore(1, 4)
		alloc := NewAllocator(&memScope{store: store}, nil)
		first := newTestExperiment(t, "run_a", 10)
		second := newTestExperiment(t, "run_b", 10)

		require.NoError(t, alloc.Enqueue(ctx, first, "A1"))
		require.NoError(t, alloc.Enqueue(ctx, second, "A1"))

		assert.Equal(t, "A2", *second.WellID)
	})

	t.Run("full plate applies backpressure without mutating the experiment", func(t *testing.T) {
		store := newMemStore(1, 1)
		alloc := NewAllocator(&memScope{store: store}, nil)
		require.NoError(t, alloc.Enqueue(ctx, newTestExperiment(t, "run_a", 10), ""))

		exp := newTestExperiment(t, "run_b", 10)
		err := alloc.Enqueue(ctx, exp, "")

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrNoAvailableWell.Code, domainErr.Code)
		assert.Equal(t, experiment.StatusNew, exp.Status)
		assert.Nil(t, exp.WellID)
	})

	t.Run("concurrent allocations never share a well", func(t *testing.T) {
		store := newMemStore(1, 16)
		alloc := NewAllocator(&memScope{store: store}, nil)

		var wg sync.WaitGroup
		results := make([]string, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				exp := newTestExperiment(t, fmt.Sprintf("run_%d", i), 10)
				if err := alloc.Enqueue(ctx, exp, ""); err == nil {
					results[i] = *exp.WellID
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for _, wellID := range results {
			require.NotEmpty(t, wellID)
			assert.False(t, seen[wellID], "well %s allocated twice", wellID)
			seen[wellID] = true
		}
	})
}

func TestScheduler_Dequeue(t *testing.T) {
	ctx := context.Background()

	t.Run("lowest priority value wins, then oldest", func(t *testing.T) {
		store := newMemStore(1, 4)
		alloc := NewAllocator(&memScope{store: store}, nil)
		low := newTestExperiment(t, "low_priority", 20)
		high := newTestExperiment(t, "high_priority", 5)
		require.NoError(t, alloc.Enqueue(ctx, low, ""))
		require.NoError(t, alloc.Enqueue(ctx, high, ""))

		sched := NewScheduler(&memScope{store: store}, nil)
		exp, well, err := sched.Dequeue(ctx)

		require.NoError(t, err)
		assert.Equal(t, "high_priority", exp.Name)
		assert.Equal(t, experiment.StatusRunning, exp.Status)
		assert.Equal(t, string(experiment.StatusRunning), well.Status)
		assert.Equal(t, experiment.StatusRunning, store.experiments[exp.ID].Status)
	})

	t.Run("claimed entries leave the queue", func(t *testing.T) {
		store := newMemStore(1, 4)
		alloc := NewAllocator(&memScope{store: store}, nil)
		require.NoError(t, alloc.Enqueue(ctx, newTestExperiment(t, "only", 10), ""))

		sched := NewScheduler(&memScope{store: store}, nil)
		_, _, err := sched.Dequeue(ctx)
		require.NoError(t, err)

		_, _, err = sched.Dequeue(ctx)
		require.ErrorIs(t, err, ErrQueueEmpty)
	})

	t.Run("empty queue reports ErrQueueEmpty", func(t *testing.T) {
		store := newMemStore(1, 4)
		sched := NewScheduler(&memScope{store: store}, nil)

		_, _, err := sched.Dequeue(ctx)

		require.ErrorIs(t, err, ErrQueueEmpty)
	})

	t.Run("random tie-break stays within the top priority band", func(t *testing.T) {
		store := newMemStore(1, 8)
		alloc := NewAllocator(&memScope{store: store}, nil)
		require.NoError(t, alloc.Enqueue(ctx, newTestExperiment(t, "tied_a", 10), ""))
		require.NoError(t, alloc.Enqueue(ctx, newTestExperiment(t, "tied_b", 10), ""))
		require.NoError(t, alloc.Enqueue(ctx, newTestExperiment(t, "behind", 50), ""))

		sched := NewScheduler(&memScope{store: store}, nil, WithRandomTiebreak(42))
		exp, _, err := sched.Dequeue(ctx)

		require.NoError(t, err)
		assert.Contains(t, []string{"tied_a", "tied_b"}, exp.Name)
	})
}

func TestScheduler_UpdatePriority(t *testing.T) {
	ctx := context.Background()

	t.Run("reprioritized experiment moves to the front of the queue", func(t *testing.T) {
		store := newMemStore(1, 4)
		scope := &memScope{store: store}
		alloc := NewAllocator(scope, nil)
		early := newTestExperiment(t, "early", 10)
		late := newTestExperiment(t, "late", 10)
		require.NoError(t, alloc.Enqueue(ctx, early, ""))
		require.NoError(t, alloc.Enqueue(ctx, late, ""))

		sched := NewScheduler(scope, nil)
		updated, err := sched.UpdatePriority(ctx, late.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Priority)

		entries, err := (&memQueueRepo{store: store}).List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "late", entries[0].Name)

		exp, _, err := sched.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "late", exp.Name)
	})

	t.Run("terminal experiment is rejected", func(t *testing.T) {
		store := newMemStore(1, 4)
		scope := &memScope{store: store}
		exp := newTestExperiment(t, "done", 10)
		require.NoError(t, exp.Complete())
		store.experiments[exp.ID] = exp

		sched := NewScheduler(scope, nil)
		_, err := sched.UpdatePriority(ctx, exp.ID, 1)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
		assert.Equal(t, 10, store.experiments[exp.ID].Priority)
	})

	t.Run("unknown experiment reports not found", func(t *testing.T) {
		store := newMemStore(1, 4)
		sched := NewScheduler(&memScope{store: store}, nil)

		_, err := sched.UpdatePriority(ctx, uuid.New(), 1)

		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestScheduler_Demote(t *testing.T) {
	ctx := context.Background()

	t.Run("demoted experiment requeues behind everything else", func(t *testing.T) {
		store := newMemStore(1, 4)
		alloc := NewAllocator(&memScope{store: store}, nil)
		starved := newTestExperiment(t, "starved", 5)
		other := newTestExperiment(t, "other", 10)
		require.NoError(t, alloc.Enqueue(ctx, starved, ""))
		require.NoError(t, alloc.Enqueue(ctx, other, ""))

		sched := NewScheduler(&memScope{store: store}, nil)
		exp, well, err := sched.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, "starved", exp.Name)

		require.NoError(t, sched.Demote(ctx, exp, well))
		assert.Equal(t, experiment.DemotedPriority, exp.Priority)

		next, _, err := sched.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "other", next.Name)
	})
}
