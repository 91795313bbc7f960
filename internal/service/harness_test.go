package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.AssignmentNotification
	err  error
}

func (r *recordingNotifier) NotifyAssignment(_ context.Context, n model.AssignmentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type harness struct {
	db          *gorm.DB
	store       *repository.Store
	notifier    *recordingNotifier
	directory   *DriverDirectory
	dispatcher  *DispatchService
	coordinator *ReassignmentService
	reaper      *TimeoutReaper
	drivers     *AssignmentService
	region      *model.Region
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.OpenTestDB(t)
	store := repository.NewStore(database)
	notifier := &recordingNotifier{}
	log := zerolog.Nop()

	directory := NewDriverDirectory(store.Drivers)
	dispatcher := NewDispatchService(store, directory, notifier, time.Minute, log)
	coordinator := NewReassignmentService(store, dispatcher, log)

	return &harness{
		db:          database,
		store:       store,
		notifier:    notifier,
		directory:   directory,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		reaper:      NewTimeoutReaper(store, coordinator, 100, log),
		drivers:     NewAssignmentService(store, coordinator, log),
		region:      testutil.SeedRegion(t, database, "Denpasar"),
	}
}

func (h *harness) order(t *testing.T) *model.Order {
	t.Helper()
	return testutil.SeedOrder(t, h.db, h.region.ID)
}

func (h *harness) driver(t *testing.T, stats *model.DriverStats) uuid.UUID {
	t.Helper()
	return testutil.SeedDriver(t, h.db, testutil.DriverSeed{RegionID: &h.region.ID, Stats: stats})
}

func (h *harness) dispatch(t *testing.T, orderID uuid.UUID) *DispatchResult {
	t.Helper()
	res, err := h.dispatcher.Dispatch(context.Background(), orderID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	return res
}

// age pushes an assignment's offer time into the past.
func (h *harness) age(t *testing.T, assignmentID uuid.UUID, by time.Duration) {
	t.Helper()
	err := h.db.Model(&model.DriverAssignment{}).
		Where("id = ?", assignmentID).
		Update("assigned_at", time.Now().UTC().Add(-by)).Error
	if err != nil {
		t.Fatalf("age assignment: %v", err)
	}
}

func asDriver(id uuid.UUID) model.Principal {
	return model.Principal{UserID: id, Role: model.UserRoleDriver}
}

func mustAssigned(t *testing.T, res *DispatchResult) uuid.UUID {
	t.Helper()
	if !res.Assigned() || res.DriverID == nil || res.Assignment == nil {
		t.Fatalf("expected an assignment, got %+v", res)
	}
	return *res.DriverID
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err=%v want %v", err, target)
	}
}
