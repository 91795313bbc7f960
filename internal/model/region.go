package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region is a delivery zone (wilayah) with a flat shipping fee.
type Region struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	ShippingFee int64     `gorm:"not null;default:0" json:"shipping_fee"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Region) TableName() string {
	return "regions"
}

func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Merchant is a warung selling inside exactly one region.
type Merchant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RegionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"region_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Merchant) TableName() string {
	return "merchants"
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
