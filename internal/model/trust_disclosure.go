package model

import (
	"time"

	"gorm.io/gorm"
)

// Disclosure kinds. Each gated listing field is justified by its own kind;
// the two are never interchangeable.
const (
	DisclosurePromotion    = "promotion"
	DisclosureVerification = "verification"
)

// TrustDisclosure is an admin-approved record that justifies a listing
// badge. At most one disclosure per (listing, kind) may be active at any
// instant; the partial unique index makes the database reject a second
// active row even if two activations race. Activation is a managed
// transition, not a delete, so inactive rows remain as history.
type TrustDisclosure struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	ListingID         uint           `json:"listing_id" gorm:"index;not null;uniqueIndex:udx_active_disclosure,priority:1,where:is_active"`
	Kind              string         `json:"kind" gorm:"type:varchar(30);not null;index;uniqueIndex:udx_active_disclosure,priority:2"`
	IsActive          bool           `json:"is_active" gorm:"not null;default:false;index"`
	ApprovedByAdminID uint           `json:"approved_by_admin_id" gorm:"index;not null"`
	ActivatedAt       *time.Time     `json:"activated_at,omitempty"`
	DeactivatedAt     *time.Time     `json:"deactivated_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}
