package model

import (
	"time"

	"gorm.io/gorm"
)

// Role values form a closed set at the policy boundary. Anything else
// read from storage or a token is treated as unauthenticated.
const (
	RoleConsumer = "consumer"
	RoleAdvisor  = "advisor"
	RoleAdmin    = "admin"
)

// User represents the user model stored in the database.
// Role is never writable by the user themselves; see the policy table.
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Email         string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password      string         `json:"-" gorm:"type:varchar(255)"`
	Role          string         `json:"role" gorm:"type:varchar(20);not null;default:'consumer'"`
	EmailVerified bool           `json:"email_verified" gorm:"default:false"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
