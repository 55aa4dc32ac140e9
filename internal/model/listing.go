package model

import (
	"time"

	"gorm.io/gorm"
)

// Verification levels, lowest to highest. Any elevation requires an active
// verification disclosure; see the badge gate.
const (
	VerificationNone            = "none"
	VerificationBasic           = "basic"
	VerificationEnhanced        = "enhanced"
	VerificationLicenceVerified = "licence_verified"
)

// Listing is a business's public marketplace profile. Featured and
// VerificationLevel are gated fields: they may only be elevated through
// the badge gate, never by an ordinary update.
type Listing struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	BusinessID        uint           `json:"business_id" gorm:"index;not null"`
	Headline          string         `json:"headline" gorm:"type:varchar(200);not null"`
	Summary           string         `json:"summary" gorm:"type:text"`
	IsActive          bool           `json:"is_active" gorm:"default:true;index"`
	Featured          bool           `json:"featured" gorm:"not null;default:false"`
	VerificationLevel string         `json:"verification_level" gorm:"type:varchar(30);not null;default:'none'"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// PublicView returns the fields an anonymous visitor may see.
func (l *Listing) PublicView() map[string]interface{} {
	return map[string]interface{}{
		"id":                 l.ID,
		"business_id":        l.BusinessID,
		"headline":           l.Headline,
		"summary":            l.Summary,
		"featured":           l.Featured,
		"verification_level": l.VerificationLevel,
	}
}
