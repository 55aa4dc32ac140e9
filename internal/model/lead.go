package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusConverted = "converted"
	LeadStatusClosed    = "closed"
)

// Lead is owned jointly by the consumer who created it and the business
// that received it.
type Lead struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ConsumerUserID uint           `json:"consumer_user_id" gorm:"index;not null"`
	BusinessID     uint           `json:"business_id" gorm:"index;not null"`
	ListingID      *uint          `json:"listing_id,omitempty" gorm:"index"`
	Status         string         `json:"status" gorm:"type:varchar(20);not null;default:'new'"`
	Message        string         `json:"message" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
