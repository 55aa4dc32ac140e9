package model

import "time"

// TrustConsent is an append-style acknowledgement tied to a disclosure.
// Self-attested: only the owning user may create one.
type TrustConsent struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	ListingID    uint      `json:"listing_id" gorm:"index;not null"`
	DisclosureID uint      `json:"disclosure_id" gorm:"index;not null"`
	ConsentType  string    `json:"consent_type" gorm:"type:varchar(50);not null"`
	Granted      bool      `json:"granted" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}
