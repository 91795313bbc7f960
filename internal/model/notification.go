package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentNotification is the payload pushed to a driver when an order is offered.
type AssignmentNotification struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	OrderID      uuid.UUID `json:"order_id"`
	DriverID     uuid.UUID `json:"driver_id"`
	MerchantName string    `json:"merchant_name"`
	RegionName   string    `json:"region_name"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	AssignedAt   time.Time `json:"assigned_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
