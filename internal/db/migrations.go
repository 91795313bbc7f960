package db

import (
	"fmt"

	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

// Partial unique indexes carry the dispatch invariants; both postgres and
// sqlite accept this syntax.
var migrationStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_driver_assignments_active_order
		ON driver_assignments (order_id)
		WHERE status IN ('pending', 'accepted', 'picked_up');`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_driver_assignments_active_driver
		ON driver_assignments (driver_id)
		WHERE status IN ('pending', 'accepted', 'picked_up');`,
	`CREATE INDEX IF NOT EXISTS idx_driver_assignments_pending_assigned_at
		ON driver_assignments (assigned_at)
		WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS idx_driver_assignments_order_status
		ON driver_assignments (order_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_driver_status_online_region
		ON driver_status (is_online, region_id);`,
}

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Region{},
		&model.Merchant{},
		&model.Order{},
		&model.DriverAssignment{},
		&model.DriverStatus{},
		&model.DriverStats{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
