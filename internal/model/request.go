package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShoutoutRequest struct {
	ID             string              `gorm:"primaryKey;size:36" json:"id"`
	RequesterID    string              `gorm:"size:64;not null;index" json:"requester_id"`
	CelebrityID    string              `gorm:"size:64;not null;index" json:"celebrity_id"`
	Message        string              `gorm:"type:text;not null" json:"message"`
	Occasion       string              `gorm:"size:255;not null" json:"occasion"`
	DeliveryDate   time.Time           `gorm:"type:date;not null" json:"delivery_date"`
	ReferenceFile  *string             `gorm:"size:512" json:"reference_file,omitempty"`
	Status         Status              `gorm:"size:16;not null;index" json:"status"`
	QuotedPrice    decimal.Decimal     `gorm:"type:numeric(20,8);not null;default:'0'" json:"quoted_price"`
	CompletedPrice decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"completed_price"`
	Version        uint64              `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time           `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"not null" json:"updated_at"`
	Video          *ShoutoutVideo      `gorm:"-" json:"video,omitempty"`
}

func (ShoutoutRequest) TableName() string { return "shoutout_requests" }

// Draft is the user-supplied part of a new request.
type Draft struct {
	RequesterID   string
	CelebrityID   string
	Message       string
	Occasion      string
	DeliveryDate  time.Time
	ReferenceFile *string
}
