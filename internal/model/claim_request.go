package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

// ClaimRequest is a user's request to take over a business profile.
// Visible to its requester and to admin only; the business named in the
// claim must not be able to see who is trying to claim it.
type ClaimRequest struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	BusinessID      uint           `json:"business_id" gorm:"index;not null"`
	RequesterUserID uint           `json:"requester_user_id" gorm:"index;not null"`
	Status          string         `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Note            string         `json:"note" gorm:"type:text"`
	DecidedByUserID *uint          `json:"decided_by_user_id,omitempty" gorm:"index"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
