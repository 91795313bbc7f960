package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dispatch-service/internal/model"
)

type DriverRepository struct {
	db *gorm.DB
}

func NewDriverRepository(db *gorm.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

func (r *DriverRepository) GetStatus(ctx context.Context, driverID uuid.UUID) (*model.DriverStatus, error) {
	var status model.DriverStatus
	err := r.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r *DriverRepository) UpsertStatus(ctx context.Context, status *model.DriverStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_online", "region_id", "last_online_at", "updated_at"}),
		}).
		Create(status).Error
}

// ListFreeOnline returns online drivers without a non-terminal assignment,
// optionally restricted to one region, never returning an excluded id.
func (r *DriverRepository) ListFreeOnline(ctx context.Context, regionID *uuid.UUID, excluded []uuid.UUID) ([]uuid.UUID, error) {
	busy := r.db.WithContext(ctx).Model(&model.DriverAssignment{}).
		Select("1").
		Where("driver_assignments.driver_id = driver_status.driver_id AND driver_assignments.status IN ?", model.ActiveAssignmentStatuses)

	query := r.db.WithContext(ctx).Model(&model.DriverStatus{}).
		Where("is_online = ?", true).
		Where("NOT EXISTS (?)", busy)
	if regionID != nil {
		query = query.Where("region_id = ?", *regionID)
	}
	if len(excluded) > 0 {
		query = query.Where("driver_id NOT IN ?", excluded)
	}

	var ids []uuid.UUID
	err := query.Order("driver_id ASC").Pluck("driver_id", &ids).Error
	return ids, err
}

// StatsByDriverIDs returns stored stats keyed by driver; drivers without a row are absent.
func (r *DriverRepository) StatsByDriverIDs(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]model.DriverStats, error) {
	out := make(map[uuid.UUID]model.DriverStats, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}
	var rows []model.DriverStats
	if err := r.db.WithContext(ctx).Where("driver_id IN ?", driverIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DriverID] = row
	}
	return out, nil
}

func (r *DriverRepository) GetStats(ctx context.Context, driverID uuid.UUID) (*model.DriverStats, error) {
	var stats model.DriverStats
	err := r.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// Penalize counts one cancelled order and recomputes the acceptance rate.
func (r *DriverRepository) Penalize(ctx context.Context, driverID uuid.UUID) error {
	return r.bumpStats(ctx, driverID, map[string]interface{}{
		"cancelled_orders": gorm.Expr("cancelled_orders + 1"),
	})
}

// RecordDelivery counts one completed order and recomputes the acceptance rate.
func (r *DriverRepository) RecordDelivery(ctx context.Context, driverID uuid.UUID) error {
	return r.bumpStats(ctx, driverID, map[string]interface{}{
		"total_orders":     gorm.Expr("total_orders + 1"),
		"completed_orders": gorm.Expr("completed_orders + 1"),
	})
}

// bumpStats increments counters in place, then derives the rate from the row
// it just locked, so concurrent bumps never lose an increment.
func (r *DriverRepository) bumpStats(ctx context.Context, driverID uuid.UUID, counters map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		defaults := model.DefaultDriverStats(driverID)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.DriverStats{}).Where("driver_id = ?", driverID).Updates(counters).Error; err != nil {
			return err
		}
		var stats model.DriverStats
		if err := tx.Where("driver_id = ?", driverID).First(&stats).Error; err != nil {
			return err
		}
		return tx.Model(&model.DriverStats{}).
			Where("driver_id = ?", driverID).
			Update("acceptance_rate", model.AcceptanceRateFor(stats.TotalOrders, stats.CancelledOrders)).Error
	})
}
