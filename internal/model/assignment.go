package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusAccepted  AssignmentStatus = "accepted"
	AssignmentStatusRejected  AssignmentStatus = "rejected"
	AssignmentStatusTimeout   AssignmentStatus = "timeout"
	AssignmentStatusPickedUp  AssignmentStatus = "picked_up"
	AssignmentStatusDelivered AssignmentStatus = "delivered"
)

// ActiveAssignmentStatuses are the non-terminal states. At most one
// assignment per order and per driver may be in one of them.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusPickedUp,
}

// DisqualifyingStatuses exclude the driver from further attempts on the same order.
var DisqualifyingStatuses = []AssignmentStatus{
	AssignmentStatusRejected,
	AssignmentStatusTimeout,
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPending:  {AssignmentStatusAccepted, AssignmentStatusRejected, AssignmentStatusTimeout},
	AssignmentStatusAccepted: {AssignmentStatusPickedUp},
	AssignmentStatusPickedUp: {AssignmentStatusDelivered},
}

func (s AssignmentStatus) IsActive() bool {
	for _, active := range ActiveAssignmentStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// Disqualifies reports whether closing an offer this way costs the driver a penalty.
func (s AssignmentStatus) Disqualifies() bool {
	return s == AssignmentStatusRejected || s == AssignmentStatusTimeout
}

// CanTransitionTo reports whether next directly follows s in the assignment lifecycle.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DriverAssignment is one attempt to deliver one order via one driver.
// Rows are never deleted; only the status moves forward.
type DriverAssignment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"order_id"`
	DriverID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"driver_id"`
	Status          AssignmentStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	AssignedAt      time.Time        `gorm:"not null;index" json:"assigned_at"`
	AcceptedAt      *time.Time       `json:"accepted_at"`
	PickedUpAt      *time.Time       `json:"picked_up_at"`
	DeliveredAt     *time.Time       `json:"delivered_at"`
	RejectionReason *string          `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DriverAssignment) TableName() string {
	return "driver_assignments"
}

func (a *DriverAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AssignmentStatusPending
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	return nil
}
