package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment. A violation of the one-active-per-order or
// one-active-per-driver index is reported as ErrActiveAssignmentExists.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *model.DriverAssignment) error {
	err := r.db.WithContext(ctx).Create(assignment).Error
	if isDuplicateKey(err) {
		return ErrActiveAssignmentExists
	}
	return err
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DriverAssignment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *AssignmentRepository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*model.DriverAssignment, error) {
	return r.first(r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, model.ActiveAssignmentStatuses).
		Order("assigned_at DESC"))
}

func (r *AssignmentRepository) FindPending(ctx context.Context, orderID, driverID uuid.UUID) (*model.DriverAssignment, error) {
	return r.first(r.db.WithContext(ctx).
		Where("order_id = ? AND driver_id = ? AND status = ?", orderID, driverID, model.AssignmentStatusPending).
		Order("assigned_at DESC"))
}

// ListByOrder returns the full ledger of an order, oldest attempt first.
func (r *AssignmentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.DriverAssignment, error) {
	var assignments []model.DriverAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("assigned_at ASC").
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *AssignmentRepository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]model.DriverAssignment, error) {
	var assignments []model.DriverAssignment
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	return assignments, err
}

// DisqualifiedDriverIDs returns drivers that rejected or timed out on this order.
func (r *AssignmentRepository) DisqualifiedDriverIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.DriverAssignment{}).
		Where("order_id = ? AND status IN ?", orderID, model.DisqualifyingStatuses).
		Distinct("driver_id").
		Pluck("driver_id", &ids).Error
	return ids, err
}

// ListPendingAssignedBefore returns pending assignments offered before cutoff, oldest first.
func (r *AssignmentRepository) ListPendingAssignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.DriverAssignment, error) {
	var assignments []model.DriverAssignment
	query := r.db.WithContext(ctx).
		Where("status = ? AND assigned_at < ?", model.AssignmentStatusPending, cutoff).
		Order("assigned_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&assignments).Error
	return assignments, err
}

// Transition moves an assignment from one status to the next only if it is
// still in the expected status. A false result means another actor won.
func (r *AssignmentRepository) Transition(ctx context.Context, id uuid.UUID, from, to model.AssignmentStatus, fields map[string]interface{}) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, errors.New("invalid assignment transition " + string(from) + " -> " + string(to))
	}
	updates := map[string]interface{}{"status": to}
	for column, value := range fields {
		updates[column] = value
	}
	res := r.db.WithContext(ctx).Model(&model.DriverAssignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AssignmentRepository) first(query *gorm.DB) (*model.DriverAssignment, error) {
	var assignment model.DriverAssignment
	if err := query.First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}
