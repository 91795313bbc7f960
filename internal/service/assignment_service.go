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

// AssignmentService carries the driver side of an offer: answering it and
// moving an accepted order through pick-up and delivery.
type AssignmentService struct {
	store       *repository.Store
	coordinator *ReassignmentService
	now         func() time.Time
	log         zerolog.Logger
}

func NewAssignmentService(store *repository.Store, coordinator *ReassignmentService, log zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		store:       store,
		coordinator: coordinator,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "driver_assignments").Logger(),
	}
}

type UpdateAvailabilityInput struct {
	IsOnline bool
	RegionID *uuid.UUID
}

// SetAvailability records the driver's online toggle and operating region.
func (s *AssignmentService) SetAvailability(ctx context.Context, principal model.Principal, input UpdateAvailabilityInput) (*model.DriverStatus, error) {
	driverID, err := driverOf(principal)
	if err != nil {
		return nil, err
	}

	status, err := s.store.Drivers.GetStatus(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = &model.DriverStatus{DriverID: driverID}
	}

	status.IsOnline = input.IsOnline
	if input.RegionID != nil {
		status.RegionID = input.RegionID
	}
	if input.IsOnline {
		now := s.now()
		status.LastOnlineAt = &now
	}

	if err := s.store.Drivers.UpsertStatus(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}

func (s *AssignmentService) ListMine(ctx context.Context, principal model.Principal) ([]model.DriverAssignment, error) {
	driverID, err := driverOf(principal)
	if err != nil {
		return nil, err
	}
	return s.store.Assignments.ListByDriver(ctx, driverID)
}

// ListForOrder returns every attempt made for an order, oldest first.
func (s *AssignmentService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]model.DriverAssignment, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return s.store.Assignments.ListByOrder(ctx, orderID)
}

func (s *AssignmentService) Accept(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.DriverAssignment, error) {
	return s.advance(ctx, principal, id, model.AssignmentStatusPending, model.AssignmentStatusAccepted, "accepted_at", model.OrderStatusAccepted)
}

func (s *AssignmentService) PickUp(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.DriverAssignment, error) {
	return s.advance(ctx, principal, id, model.AssignmentStatusAccepted, model.AssignmentStatusPickedUp, "picked_up_at", model.OrderStatusPickedUp)
}

func (s *AssignmentService) Deliver(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.DriverAssignment, error) {
	return s.advance(ctx, principal, id, model.AssignmentStatusPickedUp, model.AssignmentStatusDelivered, "delivered_at", model.OrderStatusDelivered)
}

// Reject declines a pending offer and immediately looks for the next driver.
func (s *AssignmentService) Reject(ctx context.Context, principal model.Principal, id uuid.UUID, reason string) (*DispatchResult, error) {
	driverID, assignment, err := s.ownAssignment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusPending {
		return nil, ErrConflict
	}

	return s.coordinator.Reassign(ctx, ReassignInput{
		OrderID:  assignment.OrderID,
		Reason:   reason,
		DriverID: &driverID,
		Status:   model.AssignmentStatusRejected,
	})
}

func (s *AssignmentService) advance(
	ctx context.Context,
	principal model.Principal,
	id uuid.UUID,
	from, to model.AssignmentStatus,
	stampColumn string,
	orderStatus model.OrderStatus,
) (*model.DriverAssignment, error) {
	driverID, assignment, err := s.ownAssignment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != from {
		return nil, ErrConflict
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Assignments.Transition(ctx, assignment.ID, from, to, map[string]interface{}{
			stampColumn: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		ok, err = tx.Orders.AdvanceStatus(ctx, assignment.OrderID, driverID, orderStatus)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		if to == model.AssignmentStatusDelivered {
			return tx.Drivers.RecordDelivery(ctx, driverID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update assignment %s: %w", assignment.ID, err)
	}

	s.log.Info().
		Str("assignment_id", assignment.ID.String()).
		Str("order_id", assignment.OrderID.String()).
		Str("driver_id", driverID.String()).
		Str("status", string(to)).
		Msg("assignment updated")

	updated, err := s.store.Assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (s *AssignmentService) ownAssignment(ctx context.Context, principal model.Principal, id uuid.UUID) (uuid.UUID, *model.DriverAssignment, error) {
	driverID, err := driverOf(principal)
	if err != nil {
		return uuid.Nil, nil, err
	}

	assignment, err := s.store.Assignments.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if assignment == nil {
		return uuid.Nil, nil, ErrNotFound
	}

	if assignment.DriverID != driverID {
		return uuid.Nil, nil, ErrPermissionDenied
	}
	return driverID, assignment, nil
}

// driverOf resolves the acting driver. Tokens without a dedicated driver id
// identify the driver by user id.
func driverOf(principal model.Principal) (uuid.UUID, error) {
	if !principal.IsDriver() {
		return uuid.Nil, ErrPermissionDenied
	}
	if principal.DriverID != nil && *principal.DriverID != uuid.Nil {
		return *principal.DriverID, nil
	}
	if principal.UserID == uuid.Nil {
		return uuid.Nil, ErrPermissionDenied
	}
	return principal.UserID, nil
}
