package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

const (
	ReasonTimeout = "timeout"

	defaultRejectionReason = "Driver rejected the order"
	timeoutRejectionReason = "Driver did not respond in time"
)

// ReassignInput names the order to move on and, optionally, the driver whose
// pending offer should be withdrawn first. An empty Status is derived from Reason.
type ReassignInput struct {
	OrderID  uuid.UUID
	Reason   string
	DriverID *uuid.UUID
	Status   model.AssignmentStatus
}

// ReassignmentService withdraws offers from drivers and hands the order to
// the next candidate.
type ReassignmentService struct {
	store      *repository.Store
	dispatcher *DispatchService
	log        zerolog.Logger
}

func NewReassignmentService(store *repository.Store, dispatcher *DispatchService, log zerolog.Logger) *ReassignmentService {
	return &ReassignmentService{
		store:      store,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "reassignment").Logger(),
	}
}

func (s *ReassignmentService) Reassign(ctx context.Context, in ReassignInput) (*DispatchResult, error) {
	if in.OrderID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	if in.DriverID != nil {
		pending, err := s.store.Assignments.FindPending(ctx, in.OrderID, *in.DriverID)
		if err != nil {
			return nil, fmt.Errorf("load pending assignment: %w", err)
		}
		if pending != nil {
			status, reason := in.Status, in.Reason
			if status == "" {
				status, reason = disqualification(in.Reason)
			} else if reason == "" {
				reason = defaultRejectionReason
			}
			if _, err := s.disqualify(ctx, pending, status, reason); err != nil {
				return nil, err
			}
		}
	}

	return s.dispatcher.Dispatch(ctx, in.OrderID)
}

// Expire times out a stale pending offer and redispatches its order.
// expired is false when the driver answered first; the order is left alone then.
func (s *ReassignmentService) Expire(ctx context.Context, assignment *model.DriverAssignment) (expired bool, result *DispatchResult, err error) {
	expired, err = s.disqualify(ctx, assignment, model.AssignmentStatusTimeout, timeoutRejectionReason)
	if err != nil || !expired {
		return expired, nil, err
	}
	result, err = s.dispatcher.Dispatch(ctx, assignment.OrderID)
	return true, result, err
}

// disqualify closes a pending assignment, releases the order and penalizes the
// driver in one transaction. Only the caller whose close applied penalizes.
func (s *ReassignmentService) disqualify(ctx context.Context, assignment *model.DriverAssignment, status model.AssignmentStatus, reason string) (bool, error) {
	applied := false
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Assignments.Transition(ctx, assignment.ID, model.AssignmentStatusPending, status, map[string]interface{}{
			"rejection_reason": reason,
		})
		if err != nil || !ok {
			return err
		}
		if _, err := tx.Orders.ReleaseDriver(ctx, assignment.OrderID, assignment.DriverID); err != nil {
			return err
		}
		applied = true
		if !status.Disqualifies() {
			return nil
		}
		return tx.Drivers.Penalize(ctx, assignment.DriverID)
	})
	if err != nil {
		return false, fmt.Errorf("close assignment %s: %w", assignment.ID, err)
	}

	event := s.log.Debug()
	if applied {
		event = s.log.Info()
	}
	event.
		Str("assignment_id", assignment.ID.String()).
		Str("order_id", assignment.OrderID.String()).
		Str("driver_id", assignment.DriverID.String()).
		Str("status", string(status)).
		Bool("applied", applied).
		Msg("assignment closed")
	return applied, nil
}

func disqualification(reason string) (model.AssignmentStatus, string) {
	reason = strings.TrimSpace(reason)
	switch {
	case strings.EqualFold(reason, ReasonTimeout):
		return model.AssignmentStatusTimeout, timeoutRejectionReason
	case reason == "":
		return model.AssignmentStatusRejected, defaultRejectionReason
	default:
		return model.AssignmentStatusRejected, reason
	}
}
