package model

import (
	"time"

	"gorm.io/gorm"
)

// Membership status values. Only an active membership grants advisor-side
// visibility into a business's resources.
const (
	MembershipInvited = "invited"
	MembershipActive  = "active"
	MembershipRevoked = "revoked"
)

// BusinessMembership associates users with businesses. A user may belong
// to zero or more businesses; this relation is the sole source of
// advisor-side visibility resolved onto the Principal.
type BusinessMembership struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	Role       string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"` // Role within business: 'owner', 'admin', 'member', etc.
	Status     string         `json:"status" gorm:"type:varchar(20);not null;default:'invited'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User     User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Business Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}
