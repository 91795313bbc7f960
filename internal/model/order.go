package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusWaitingDriver  OrderStatus = "waiting_driver"
	OrderStatusDriverAssigned OrderStatus = "driver_assigned"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ClosedOrderStatuses never receive another dispatch attempt.
var ClosedOrderStatuses = []OrderStatus{OrderStatusDelivered, OrderStatusCancelled}

func (s OrderStatus) IsClosed() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusWaitingDriver, OrderStatusDriverAssigned,
		OrderStatusAccepted, OrderStatusPickedUp, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is the checkout row. DriverID mirrors the driver of the order's
// non-terminal assignment and is nil whenever no such assignment exists.
type Order struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	RegionID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"region_id"`
	MerchantID uuid.UUID   `gorm:"type:uuid;not null;index" json:"merchant_id"`
	CustomerID *uuid.UUID  `gorm:"type:uuid;index" json:"customer_id"`
	Status     OrderStatus `gorm:"type:varchar(32);not null;default:pending;index" json:"status"`
	DriverID   *uuid.UUID  `gorm:"type:uuid;index" json:"driver_id"`
	Region     *Region     `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	Merchant   *Merchant   `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}
