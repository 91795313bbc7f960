package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dispatch-service/internal/config"
	"dispatch-service/internal/db"
	"dispatch-service/internal/model"
)

// OpenTestDB opens a private in-memory sqlite database with migrations applied.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.Open(sqlite.Open(":memory:"), config.DBConfig{Driver: config.DriverSQLite}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func SeedRegion(t *testing.T, database *gorm.DB, name string) *model.Region {
	t.Helper()
	region := &model.Region{Name: name, ShippingFee: 5000}
	if err := database.Create(region).Error; err != nil {
		t.Fatalf("seed region: %v", err)
	}
	return region
}

// SeedOrder creates a merchant in the region and a pending order from it.
func SeedOrder(t *testing.T, database *gorm.DB, regionID uuid.UUID) *model.Order {
	t.Helper()
	merchant := &model.Merchant{RegionID: regionID, Name: "Warung Sari", Address: "Jl. Merdeka 1"}
	if err := database.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	order := &model.Order{RegionID: regionID, MerchantID: merchant.ID}
	if err := database.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// DriverSeed describes one driver. A nil Stats leaves the driver without a stats row.
type DriverSeed struct {
	ID       uuid.UUID
	RegionID *uuid.UUID
	Offline  bool
	Stats    *model.DriverStats
}

func SeedDriver(t *testing.T, database *gorm.DB, seed DriverSeed) uuid.UUID {
	t.Helper()
	id := seed.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	status := &model.DriverStatus{DriverID: id, IsOnline: !seed.Offline, RegionID: seed.RegionID, LastOnlineAt: &now}
	if err := database.Create(status).Error; err != nil {
		t.Fatalf("seed driver status: %v", err)
	}
	if seed.Stats != nil {
		stats := *seed.Stats
		stats.DriverID = id
		if err := database.Create(&stats).Error; err != nil {
			t.Fatalf("seed driver stats: %v", err)
		}
	}
	return id
}

// Assignments returns the order's ledger straight from the table.
func Assignments(t *testing.T, database *gorm.DB, orderID uuid.UUID) []model.DriverAssignment {
	t.Helper()
	var out []model.DriverAssignment
	if err := database.WithContext(context.Background()).
		Where("order_id = ?", orderID).
		Order("assigned_at ASC").
		Find(&out).Error; err != nil {
		t.Fatalf("load assignments: %v", err)
	}
	return out
}

// ActiveCount counts non-terminal assignments of an order.
func ActiveCount(t *testing.T, database *gorm.DB, orderID uuid.UUID) int {
	t.Helper()
	var n int64
	if err := database.Model(&model.DriverAssignment{}).
		Where("order_id = ? AND status IN ?", orderID, model.ActiveAssignmentStatuses).
		Count(&n).Error; err != nil {
		t.Fatalf("count active assignments: %v", err)
	}
	return int(n)
}

func ReloadOrder(t *testing.T, database *gorm.DB, orderID uuid.UUID) *model.Order {
	t.Helper()
	var order model.Order
	if err := database.Where("id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return &order
}

func ReloadStats(t *testing.T, database *gorm.DB, driverID uuid.UUID) *model.DriverStats {
	t.Helper()
	var stats model.DriverStats
	if err := database.Where("driver_id = ?", driverID).First(&stats).Error; err != nil {
		t.Fatalf("reload stats: %v", err)
	}
	return &stats
}

func Stats(acceptance, rating float64, total, completed, cancelled int) *model.DriverStats {
	return &model.DriverStats{
		AcceptanceRate:  acceptance,
		AverageRating:   rating,
		TotalOrders:     total,
		CompletedOrders: completed,
		CancelledOrders: cancelled,
	}
}
