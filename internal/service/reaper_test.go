package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/testutil"
)

func TestSweep_ExpiresStaleOffersOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	slow := h.driver(t, testutil.Stats(100, 5.0, 20, 20, 0))
	quick := h.driver(t, testutil.Stats(100, 4.9, 20, 20, 0))

	staleOrder := h.order(t)
	stale := h.dispatch(t, staleOrder.ID)
	if got := mustAssigned(t, stale); got != slow {
		t.Fatalf("stale order went to %s", got)
	}
	freshOrder := h.order(t)
	fresh := h.dispatch(t, freshOrder.ID)
	if got := mustAssigned(t, fresh); got != quick {
		t.Fatalf("fresh order went to %s", got)
	}
	h.age(t, stale.Assignment.ID, 2*time.Minute)

	backup := h.driver(t, nil)

	res, err := h.reaper.Sweep(ctx, time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Expired != 1 || res.Reassigned != 1 {
		t.Fatalf("sweep result %+v want expired=1 reassigned=1", res)
	}

	expired, err := h.store.Assignments.GetByID(ctx, stale.Assignment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if expired.Status != model.AssignmentStatusTimeout || expired.RejectionReason == nil {
		t.Fatalf("stale offer not expired: %+v", expired)
	}
	stillPending, err := h.store.Assignments.GetByID(ctx, fresh.Assignment.ID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if stillPending.Status != model.AssignmentStatusPending {
		t.Fatalf("fresh offer touched: %+v", stillPending)
	}

	reloaded := testutil.ReloadOrder(t, h.db, staleOrder.ID)
	if reloaded.DriverID == nil || *reloaded.DriverID != backup {
		t.Fatalf("stale order should move to the backup driver, got %+v", reloaded.DriverID)
	}
	if stats := testutil.ReloadStats(t, h.db, slow); stats.CancelledOrders != 1 {
		t.Fatalf("slow driver cancelled=%d want 1", stats.CancelledOrders)
	}

	again, err := h.reaper.Sweep(ctx, time.Minute)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Expired != 0 {
		t.Fatalf("second sweep expired %d offers", again.Expired)
	}
}

func TestSweep_NoReplacementLeavesOrderWaiting(t *testing.T) {
	h := newHarness(t)
	h.driver(t, nil)
	order := h.order(t)
	res := h.dispatch(t, order.ID)
	mustAssigned(t, res)
	h.age(t, res.Assignment.ID, time.Hour)

	sweep, err := h.reaper.Sweep(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sweep.Expired != 1 || sweep.Reassigned != 0 {
		t.Fatalf("sweep result %+v", sweep)
	}
	if stored := testutil.ReloadOrder(t, h.db, order.ID); stored.Status != model.OrderStatusWaitingDriver {
		t.Fatalf("order status=%s want waiting_driver", stored.Status)
	}
}

func TestSweep_RejectsNonPositiveTimeout(t *testing.T) {
	h := newHarness(t)
	_, err := h.reaper.Sweep(context.Background(), 0)
	wantErr(t, err, ErrInvalidInput)
}

func TestSweep_RacesAcceptExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		driverID := h.driver(t, testutil.Stats(100, 5, 10, 10, 0))
		order := h.order(t)
		res := h.dispatch(t, order.ID)
		if got := mustAssigned(t, res); got != driverID {
			t.Fatalf("round %d: assigned %s want %s", i, got, driverID)
		}
		h.age(t, res.Assignment.ID, 2*time.Minute)

		var (
			wg        sync.WaitGroup
			acceptErr error
			sweep     SweepResult
			sweepErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = h.drivers.Accept(ctx, asDriver(driverID), res.Assignment.ID)
		}()
		go func() {
			defer wg.Done()
			sweep, sweepErr = h.reaper.Sweep(ctx, time.Minute)
		}()
		wg.Wait()

		if sweepErr != nil {
			t.Fatalf("round %d: sweep: %v", i, sweepErr)
		}

		final, err := h.store.Assignments.GetByID(ctx, res.Assignment.ID)
		if err != nil {
			t.Fatalf("round %d: get: %v", i, err)
		}
		stats := testutil.ReloadStats(t, h.db, driverID)

		switch final.Status {
		case model.AssignmentStatusAccepted:
			if acceptErr != nil || sweep.Expired != 0 {
				t.Fatalf("round %d: accepted but accept=%v expired=%d", i, acceptErr, sweep.Expired)
			}
			if stats.CancelledOrders != 0 {
				t.Fatalf("round %d: accepted driver penalized", i)
			}
			if stored := testutil.ReloadOrder(t, h.db, order.ID); stored.Status != model.OrderStatusAccepted {
				t.Fatalf("round %d: order status=%s want accepted", i, stored.Status)
			}
		case model.AssignmentStatusTimeout:
			if !errors.Is(acceptErr, ErrConflict) || sweep.Expired != 1 {
				t.Fatalf("round %d: expired but accept=%v expired=%d", i, acceptErr, sweep.Expired)
			}
			if stats.CancelledOrders != 1 {
				t.Fatalf("round %d: cancelled=%d want 1", i, stats.CancelledOrders)
			}
		default:
			t.Fatalf("round %d: assignment ended as %s", i, final.Status)
		}
		if active := testutil.ActiveCount(t, h.db, order.ID); active > 1 {
			t.Fatalf("round %d: %d active assignments", i, active)
		}
	}
}

type existingExpirer struct{}

func (existingExpirer) Expire(_ context.Context, a *model.DriverAssignment) (bool, *DispatchResult, error) {
	driverID := a.DriverID
	return true, &DispatchResult{
		Outcome:     DispatchAssigned,
		OrderID:     a.OrderID,
		OrderStatus: model.OrderStatusDriverAssigned,
		DriverID:    &driverID,
		Existing:    true,
	}, nil
}

func TestSweep_ExistingAssignmentIsNotCountedAsReassigned(t *testing.T) {
	h := newHarness(t)
	h.driver(t, nil)
	res := h.dispatch(t, h.order(t).ID)
	mustAssigned(t, res)
	h.age(t, res.Assignment.ID, time.Hour)

	reaper := NewTimeoutReaper(h.store, existingExpirer{}, 100, zerolog.Nop())
	sweep, err := reaper.Sweep(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sweep.Expired != 1 || sweep.Reassigned != 0 {
		t.Fatalf("sweep result %+v want expired=1 reassigned=0", sweep)
	}
}
