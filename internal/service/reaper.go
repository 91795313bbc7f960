package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

// Expirer closes one timed-out offer and redispatches its order.
type Expirer interface {
	Expire(ctx context.Context, assignment *model.DriverAssignment) (bool, *DispatchResult, error)
}

// TimeoutReaper expires pending offers nobody answered in time and moves
// their orders on to the next driver.
type TimeoutReaper struct {
	store       *repository.Store
	coordinator Expirer
	batchSize   int
	now         func() time.Time
	log         zerolog.Logger
}

type SweepResult struct {
	Expired    int
	Reassigned int
}

func NewTimeoutReaper(store *repository.Store, coordinator Expirer, batchSize int, log zerolog.Logger) *TimeoutReaper {
	return &TimeoutReaper{
		store:       store,
		coordinator: coordinator,
		batchSize:   batchSize,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "reaper").Logger(),
	}
}

// Sweep handles every pending assignment older than timeout. A failing item
// does not stop the sweep; all failures come back joined.
func (r *TimeoutReaper) Sweep(ctx context.Context, timeout time.Duration) (SweepResult, error) {
	var result SweepResult
	if timeout <= 0 {
		return result, ErrInvalidInput
	}

	cutoff := r.now().Add(-timeout)
	stale, err := r.store.Assignments.ListPendingAssignedBefore(ctx, cutoff, r.batchSize)
	if err != nil {
		return result, err
	}

	var errs []error
	for i := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		assignment := &stale[i]
		expired, dispatched, err := r.coordinator.Expire(ctx, assignment)
		if expired {
			result.Expired++
		}
		if err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				// order closed while its offer was outstanding
				continue
			}
			r.log.Error().Err(err).
				Str("assignment_id", assignment.ID.String()).
				Str("order_id", assignment.OrderID.String()).
				Msg("expire assignment failed")
			errs = append(errs, err)
			continue
		}
		if dispatched.Assigned() && !dispatched.Existing {
			result.Reassigned++
		}
	}

	r.log.Info().
		Int("candidates", len(stale)).
		Int("expired", result.Expired).
		Int("reassigned", result.Reassigned).
		Dur("timeout", timeout).
		Msg("timeout sweep finished")
	return result, errors.Join(errs...)
}
