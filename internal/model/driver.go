package model

import (
	"time"

	"github.com/google/uuid"
)

// DriverStatus is the driver's own online toggle and current operating region.
type DriverStatus struct {
	DriverID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"driver_id"`
	IsOnline     bool       `gorm:"not null;index" json:"is_online"`
	RegionID     *uuid.UUID `gorm:"type:uuid;index" json:"region_id"`
	LastOnlineAt *time.Time `json:"last_online_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DriverStatus) TableName() string {
	return "driver_status"
}

const (
	DefaultAcceptanceRate = 100.0
	DefaultAverageRating  = 5.0
)

type DriverStats struct {
	DriverID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"driver_id"`
	TotalOrders     int       `gorm:"not null;default:0" json:"total_orders"`
	CompletedOrders int       `gorm:"not null;default:0" json:"completed_orders"`
	CancelledOrders int       `gorm:"not null;default:0" json:"cancelled_orders"`
	AverageRating   float64   `gorm:"not null" json:"average_rating"`
	AcceptanceRate  float64   `gorm:"not null" json:"acceptance_rate"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DriverStats) TableName() string {
	return "driver_stats"
}

// DefaultDriverStats ranks drivers without history optimistically.
func DefaultDriverStats(driverID uuid.UUID) DriverStats {
	return DriverStats{
		DriverID:       driverID,
		AverageRating:  DefaultAverageRating,
		AcceptanceRate: DefaultAcceptanceRate,
	}
}

// AcceptanceRateFor computes max(0, (total-cancelled)/total*100); zero orders yields zero.
func AcceptanceRateFor(total, cancelled int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(total-cancelled) * 100 / float64(total)
	if rate < 0 {
		return 0
	}
	return rate
}
