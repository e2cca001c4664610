package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"go.uber.org/zap"
)

// ErrQueueEmpty is returned by Dequeue when no experiment is waiting.
var ErrQueueEmpty = shared.NewDomainError("QUEUE_EMPTY", "No queued experiments")

const (
	dequeueAttempts = 3
	dequeueBackoff  = 250 * time.Millisecond
)

// Scheduler picks the next experiment to run. Selection is lowest priority
// value first; ties go to the oldest entry, or to a uniformly random entry
// when random tie-breaking is enabled.
type Scheduler struct {
	scope          TransactionScope
	randomTiebreak bool
	rng            *rand.Rand
	logger         *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRandomTiebreak picks randomly among equal-priority entries instead of
// oldest first.
func WithRandomTiebreak(seed int64) SchedulerOption {
	return func(s *Scheduler) {
		s.randomTiebreak = true
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(scope TransactionScope, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{scope: scope, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dequeue claims the next experiment: the winning entry's experiment and
// well move to running inside one transaction, so a concurrent dequeue
// cannot claim the same entry. Transient store contention is retried a few
// times before giving up.
func (s *Scheduler) Dequeue(ctx context.Context) (*experiment.Experiment, *vessel.Well, error) {
	var lastErr error
	for attempt := 0; attempt < dequeueAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(dequeueBackoff):
			}
		}
		exp, well, err := s.dequeueOnce(ctx)
		if err == nil {
			return exp, well, nil
		}
		if !isTransient(err) {
			return nil, nil, err
		}
		s.logger.Warn("dequeue hit store contention, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		lastErr = err
	}
	return nil, nil, lastErr
}

func (s *Scheduler) dequeueOnce(ctx context.Context) (*experiment.Experiment, *vessel.Well, error) {
	var exp *experiment.Experiment
	var well *vessel.Well

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		entries, err := repos.Queue().List(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrQueueEmpty
		}
		entry := s.pick(entries)

		exp, err = repos.Experiments().FindByID(ctx, entry.ExperimentID)
		if err != nil {
			return err
		}
		well, err = repos.Wells().Find(ctx, entry.PlateID, entry.WellID)
		if err != nil {
			return err
		}

		if err := exp.SetStatus(experiment.StatusRunning); err != nil {
			return err
		}
		well.SetStatus(string(experiment.StatusRunning))
		if err := repos.Experiments().Save(ctx, exp); err != nil {
			return err
		}
		return repos.Wells().Save(ctx, well)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("experiment dequeued",
		zap.String("experiment", exp.Name),
		zap.String("well_id", well.WellID),
		zap.Int("priority", exp.Priority))
	return exp, well, nil
}

// pick assumes entries are ordered by priority, then age, then id.
func (s *Scheduler) pick(entries []QueueEntry) QueueEntry {
	if !s.randomTiebreak {
		return entries[0]
	}
	minPriority := entries[0].Priority
	n := 0
	for n < len(entries) && entries[n].Priority == minPriority {
		n++
	}
	return entries[s.rng.Intn(n)]
}

// Demote pushes a claimed experiment back to the end of the queue after an
// insufficient stock check, instead of failing it.
func (s *Scheduler) Demote(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := exp.Demote(); err != nil {
			return err
		}
		well.SetStatus(string(experiment.StatusQueued))
		if err := repos.Experiments().Save(ctx, exp); err != nil {
			return err
		}
		if err := repos.Wells().Save(ctx, well); err != nil {
			return err
		}
		s.logger.Warn("experiment demoted for insufficient stock",
			zap.String("experiment", exp.Name),
			zap.Int("priority", exp.Priority))
		return nil
	})
}

// UpdatePriority moves a waiting experiment up or down the queue. Terminal
// experiments are rejected by the aggregate.
func (s *Scheduler) UpdatePriority(ctx context.Context, experimentID uuid.UUID, priority int) (*experiment.Experiment, error) {
	var exp *experiment.Experiment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		exp, err = repos.Experiments().FindByID(ctx, experimentID)
		if err != nil {
			return err
		}
		if err := exp.Reprioritize(priority); err != nil {
			return err
		}
		return repos.Experiments().Save(ctx, exp)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("experiment reprioritized",
		zap.String("experiment", exp.Name),
		zap.Int("priority", priority))
	return exp, nil
}

// isTransient reports whether the error looks like store lock contention
// rather than an integrity violation.
func isTransient(err error) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "serialization")
}
