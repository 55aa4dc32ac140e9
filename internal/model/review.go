package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ReviewStatusPending   = "pending"
	ReviewStatusPublished = "published"
	ReviewStatusRejected  = "rejected"

	DisputeStatusOpen      = "open"
	DisputeStatusResolved  = "resolved"
	DisputeStatusDismissed = "dismissed"

	ReplyStatusDraft     = "draft"
	ReplyStatusPublished = "published"
)

// Review is publicly readable once published. Before publication only the
// owning consumer and admin can see it.
type Review struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	LeadID         uint           `json:"lead_id" gorm:"index;not null"`
	ConsumerUserID uint           `json:"consumer_user_id" gorm:"index;not null"`
	BusinessID     uint           `json:"business_id" gorm:"index;not null"`
	ListingID      uint           `json:"listing_id" gorm:"index;not null"`
	Rating         int            `json:"rating" gorm:"not null"`
	Comment        string         `json:"comment" gorm:"type:text"`
	Status         string         `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// ReviewDispute is visible to its requester, the disputed business and
// admin only.
type ReviewDispute struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ReviewID        uint           `json:"review_id" gorm:"index;not null"`
	RequesterUserID uint           `json:"requester_user_id" gorm:"index;not null"`
	BusinessID      uint           `json:"business_id" gorm:"index;not null"`
	Reason          string         `json:"reason" gorm:"type:text;not null"`
	Status          string         `json:"status" gorm:"type:varchar(20);not null;default:'open'"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// ReviewReply is the business's public response to a review. Publicly
// readable once published; writable only by members of the business.
type ReviewReply struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ReviewID        uint           `json:"review_id" gorm:"index;not null"`
	BusinessID      uint           `json:"business_id" gorm:"index;not null"`
	ResponderUserID uint           `json:"responder_user_id" gorm:"index;not null"`
	Body            string         `json:"body" gorm:"type:text;not null"`
	Status          string         `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
