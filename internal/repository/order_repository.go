package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByID loads the order with its region and merchant. Missing orders yield (nil, nil).
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Region").
		Preload("Merchant").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// AssignDriver points an open order at driverID.
func (r *OrderRepository) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, model.ClosedOrderStatuses).
		Updates(map[string]interface{}{
			"status":    model.OrderStatusDriverAssigned,
			"driver_id": driverID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkWaiting parks an open order with no non-terminal assignment. It does
// nothing when a concurrent dispatcher already attached a driver.
func (r *OrderRepository) MarkWaiting(ctx context.Context, orderID uuid.UUID) (bool, error) {
	active := r.db.WithContext(ctx).Model(&model.DriverAssignment{}).
		Select("1").
		Where("driver_assignments.order_id = orders.id AND driver_assignments.status IN ?", model.ActiveAssignmentStatuses)

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, model.ClosedOrderStatuses).
		Where("NOT EXISTS (?)", active).
		Updates(map[string]interface{}{
			"status":    model.OrderStatusWaitingDriver,
			"driver_id": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseDriver clears the pointer if it still names driverID.
func (r *OrderRepository) ReleaseDriver(ctx context.Context, orderID, driverID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND driver_id = ? AND status NOT IN ?", orderID, driverID, model.ClosedOrderStatuses).
		Updates(map[string]interface{}{
			"status":    model.OrderStatusWaitingDriver,
			"driver_id": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdvanceStatus moves the order forward on behalf of its current driver.
func (r *OrderRepository) AdvanceStatus(ctx context.Context, orderID, driverID uuid.UUID, status model.OrderStatus) (bool, error) {
	if !status.IsValid() {
		return false, fmt.Errorf("invalid order status %q", status)
	}
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND driver_id = ? AND status NOT IN ?", orderID, driverID, model.ClosedOrderStatuses).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
