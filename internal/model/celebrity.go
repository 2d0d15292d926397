package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Celebrity is catalog reference data; this service only reads it.
type Celebrity struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8);not null;default:'0'" json:"price"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Celebrity) TableName() string { return "celebrities" }
