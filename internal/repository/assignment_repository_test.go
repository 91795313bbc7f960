package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/model"
	"dispatch-service/internal/testutil"
)

func TestAssignmentRepository_OneActivePerOrder(t *testing.T) {
	database := testutil.OpenTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	region := testutil.SeedRegion(t, database, "Denpasar")
	order := testutil.SeedOrder(t, database, region.ID)

	first := &model.DriverAssignment{OrderID: order.ID, DriverID: uuid.New()}
	if err := store.Assignments.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &model.DriverAssignment{OrderID: order.ID, DriverID: uuid.New()}
	err := store.Assignments.Create(ctx, second)
	if !errors.Is(err, ErrActiveAssignmentExists) {
		t.Fatalf("second active assignment err=%v want ErrActiveAssignmentExists", err)
	}

	ok, err := store.Assignments.Transition(ctx, first.ID, model.AssignmentStatusPending, model.AssignmentStatusRejected, nil)
	if err != nil || !ok {
		t.Fatalf("reject first: ok=%v err=%v", ok, err)
	}

	third := &model.DriverAssignment{OrderID: order.ID, DriverID: uuid.New()}
	if err := store.Assignments.Create(ctx, third); err != nil {
		t.Fatalf("create after terminal: %v", err)
	}
}

func TestAssignmentRepository_OneActivePerDriver(t *testing.T) {
	database := testutil.OpenTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	region := testutil.SeedRegion(t, database, "Denpasar")
	a := testutil.SeedOrder(t, database, region.ID)
	b := testutil.SeedOrder(t, database, region.ID)
	driverID := uuid.New()

	if err := store.Assignments.Create(ctx, &model.DriverAssignment{OrderID: a.ID, DriverID: driverID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Assignments.Create(ctx, &model.DriverAssignment{OrderID: b.ID, DriverID: driverID})
	if !errors.Is(err, ErrActiveAssignmentExists) {
		t.Fatalf("busy driver err=%v want ErrActiveAssignmentExists", err)
	}
}

func TestAssignmentRepository_ConditionalTransition(t *testing.T) {
	database := testutil.OpenTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	region := testutil.SeedRegion(t, database, "Denpasar")
	order := testutil.SeedOrder(t, database, region.ID)
	assignment := &model.DriverAssignment{OrderID: order.ID, DriverID: uuid.New()}
	if err := store.Assignments.Create(ctx, assignment); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	ok, err := store.Assignments.Transition(ctx, assignment.ID, model.AssignmentStatusPending, model.AssignmentStatusAccepted, map[string]interface{}{"accepted_at": now})
	if err != nil || !ok {
		t.Fatalf("accept: ok=%v err=%v", ok, err)
	}

	// the loser of the race sees zero rows, not an error
	ok, err = store.Assignments.Transition(ctx, assignment.ID, model.AssignmentStatusPending, model.AssignmentStatusTimeout, nil)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if ok {
		t.Fatalf("timeout applied over an accepted assignment")
	}

	if _, err := store.Assignments.Transition(ctx, assignment.ID, model.AssignmentStatusAccepted, model.AssignmentStatusRejected, nil); err == nil {
		t.Fatalf("accepted -> rejected must be refused")
	}

	got, err := store.Assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AssignmentStatusAccepted || got.AcceptedAt == nil {
		t.Fatalf("unexpected assignment: %+v", got)
	}
}

func TestAssignmentRepository_ListPendingAssignedBefore(t *testing.T) {
	database := testutil.OpenTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	region := testutil.SeedRegion(t, database, "Denpasar")
	now := time.Now().UTC()

	stale := &model.DriverAssignment{OrderID: testutil.SeedOrder(t, database, region.ID).ID, DriverID: uuid.New(), AssignedAt: now.Add(-5 * time.Minute)}
	fresh := &model.DriverAssignment{OrderID: testutil.SeedOrder(t, database, region.ID).ID, DriverID: uuid.New(), AssignedAt: now}
	for _, a := range []*model.DriverAssignment{stale, fresh} {
		if err := store.Assignments.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := store.Assignments.ListPendingAssignedBefore(ctx, now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("got %d assignments, want only the stale one", len(got))
	}
}

func TestAssignmentRepository_DisqualifiedDriverIDs(t *testing.T) {
	database := testutil.OpenTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	region := testutil.SeedRegion(t, database, "Denpasar")
	order := testutil.SeedOrder(t, database, region.ID)

	rejected, timedOut := uuid.New(), uuid.New()
	for _, step := range []struct {
		driver uuid.UUID
		to     model.AssignmentStatus
	}{{rejected, model.AssignmentStatusRejected}, {timedOut, model.AssignmentStatusTimeout}} {
		a := &model.DriverAssignment{OrderID: order.ID, DriverID: step.driver}
		if err := store.Assignments.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
		if ok, err := store.Assignments.Transition(ctx, a.ID, model.AssignmentStatusPending, step.to, nil); err != nil || !ok {
			t.Fatalf("close: ok=%v err=%v", ok, err)
		}
	}
	if err := store.Assignments.Create(ctx, &model.DriverAssignment{OrderID: order.ID, DriverID: uuid.New()}); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	ids, err := store.Assignments.DisqualifiedDriverIDs(ctx, order.ID)
	if err != nil {
		t.Fatalf("disqualified: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %v, want the rejected and timed-out drivers", ids)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[rejected] || !seen[timedOut] {
		t.Fatalf("got %v", ids)
	}
}
