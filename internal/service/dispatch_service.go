package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

type DispatchOutcome string

const (
	DispatchAssigned DispatchOutcome = "assigned"
	DispatchWaiting  DispatchOutcome = "waiting"
)

const notifyTimeout = 5 * time.Second

// DispatchResult reports what a dispatch attempt left the order with.
// Existing is set when the order already had a live assignment and nothing new was created.
type DispatchResult struct {
	Outcome     DispatchOutcome
	OrderID     uuid.UUID
	OrderStatus model.OrderStatus
	DriverID    *uuid.UUID
	Assignment  *model.DriverAssignment
	Existing    bool
}

func (r *DispatchResult) Assigned() bool {
	return r != nil && r.Outcome == DispatchAssigned
}

type DispatchService struct {
	store     *repository.Store
	directory *DriverDirectory
	notifier  Notifier
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewDispatchService wires the dispatcher. timeout is how long a driver has to
// answer an offer and only shapes the notification payload.
func NewDispatchService(store *repository.Store, directory *DriverDirectory, notifier Notifier, timeout time.Duration, log zerolog.Logger) *DispatchService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &DispatchService{
		store:     store,
		directory: directory,
		notifier:  notifier,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch gives the order to the best free driver, or parks it as waiting when
// nobody is eligible. Calling it again for an order that already has a live
// assignment returns that assignment unchanged.
func (s *DispatchService) Dispatch(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status.IsClosed() {
		return nil, ErrConflict
	}

	if existing, err := s.existing(ctx, order.ID); err != nil || existing != nil {
		return existing, err
	}

	excluded, err := s.store.Assignments.DisqualifiedDriverIDs(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load disqualified drivers: %w", err)
	}

	candidates, err := s.directory.ListEligibleDrivers(ctx, order.RegionID, excluded)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		assignment, err := s.offer(ctx, order.ID, candidate.DriverID)
		if err == nil {
			s.log.Info().
				Str("order_id", order.ID.String()).
				Str("driver_id", candidate.DriverID.String()).
				Str("assignment_id", assignment.ID.String()).
				Float64("acceptance_rate", candidate.Stats.AcceptanceRate).
				Msg("driver assigned")
			s.notify(ctx, order, assignment)
			return assignedResult(assignment, false), nil
		}
		if !errors.Is(err, repository.ErrActiveAssignmentExists) {
			return nil, err
		}

		// Either another dispatcher served this order or the candidate
		// was taken by a different order in the meantime.
		if existing, err := s.existing(ctx, order.ID); err != nil || existing != nil {
			return existing, err
		}
		s.log.Debug().
			Str("order_id", order.ID.String()).
			Str("driver_id", candidate.DriverID.String()).
			Msg("candidate busy, trying next")
	}

	return s.park(ctx, order.ID)
}

func (s *DispatchService) offer(ctx context.Context, orderID, driverID uuid.UUID) (*model.DriverAssignment, error) {
	assignment := &model.DriverAssignment{
		OrderID:    orderID,
		DriverID:   driverID,
		Status:     model.AssignmentStatusPending,
		AssignedAt: s.now(),
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Assignments.Create(ctx, assignment); err != nil {
			return err
		}
		ok, err := tx.Orders.AssignDriver(ctx, orderID, driverID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *DispatchService) park(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error) {
	ok, err := s.store.Orders.MarkWaiting(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("mark order waiting: %w", err)
	}
	if !ok {
		if existing, err := s.existing(ctx, orderID); err != nil || existing != nil {
			return existing, err
		}
		// Nothing active and the update still missed: the order was closed.
		return nil, ErrConflict
	}

	s.log.Info().Str("order_id", orderID.String()).Msg("no eligible driver, order waiting")
	return &DispatchResult{
		Outcome:     DispatchWaiting,
		OrderID:     orderID,
		OrderStatus: model.OrderStatusWaitingDriver,
	}, nil
}

func (s *DispatchService) existing(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error) {
	active, err := s.store.Assignments.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load active assignment: %w", err)
	}
	if active == nil {
		return nil, nil
	}
	return assignedResult(active, true), nil
}

func (s *DispatchService) notify(ctx context.Context, order *model.Order, assignment *model.DriverAssignment) {
	n := model.AssignmentNotification{
		AssignmentID: assignment.ID,
		OrderID:      order.ID,
		DriverID:     assignment.DriverID,
		Title:        "New order",
		AssignedAt:   assignment.AssignedAt,
		ExpiresAt:    assignment.AssignedAt.Add(s.timeout),
	}
	if order.Merchant != nil {
		n.MerchantName = order.Merchant.Name
	}
	if order.Region != nil {
		n.RegionName = order.Region.Name
	}
	n.Body = "Pick up at " + n.MerchantName
	if n.MerchantName == "" {
		n.Body = "You have a new delivery"
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyAssignment(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("order_id", order.ID.String()).
			Str("driver_id", assignment.DriverID.String()).
			Msg("notify driver failed")
	}
}

func assignedResult(assignment *model.DriverAssignment, existing bool) *DispatchResult {
	driverID := assignment.DriverID
	return &DispatchResult{
		Outcome:     DispatchAssigned,
		OrderID:     assignment.OrderID,
		OrderStatus: orderStatusFor(assignment.Status),
		DriverID:    &driverID,
		Assignment:  assignment,
		Existing:    existing,
	}
}

// orderStatusFor maps a live assignment to the order status it implies.
func orderStatusFor(status model.AssignmentStatus) model.OrderStatus {
	switch status {
	case model.AssignmentStatusAccepted:
		return model.OrderStatusAccepted
	case model.AssignmentStatusPickedUp:
		return model.OrderStatusPickedUp
	default:
		return model.OrderStatusDriverAssigned
	}
}
