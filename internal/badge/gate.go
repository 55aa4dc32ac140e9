// Package badge implements the state machine over the two gated listing
// fields. Elevating a badge requires an active trust disclosure of the
// matching kind; de-elevation and no-ops are always permitted. The two
// gates are independent: promotion and verification are orthogonal
// signals and must never be conflated.
package badge

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trust-service/internal/model"
)

// Field names the gated listing attributes.
type Field string

const (
	FieldFeatured          Field = "featured"
	FieldVerificationLevel Field = "verification_level"
)

var (
	// ErrGateViolation is returned when a gated transition is attempted
	// without an active qualifying disclosure. The write is rejected,
	// never silently ignored.
	ErrGateViolation = errors.New("badge gate violation")

	// ErrUnknownField is returned for a field outside the gated set.
	ErrUnknownField = errors.New("unknown badge field")

	// ErrUnknownValue is returned for a value outside the field's domain.
	ErrUnknownValue = errors.New("unknown badge value")
)

// verificationRank orders the verification levels. Any rank increase is
// an elevation and requires an active verification disclosure.
var verificationRank = map[string]int{
	model.VerificationNone:            0,
	model.VerificationBasic:           1,
	model.VerificationEnhanced:        2,
	model.VerificationLicenceVerified: 3,
}

// parseFeatured accepts exactly the two spellings the write path
// persists. Looser forms like "1" or "TRUE" are rejected up front so the
// gate and the write can never disagree about the requested value.
func parseFeatured(value string) (bool, error) {
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: featured must be %q or %q, got %q", ErrUnknownValue, "true", "false", value)
	}
}

// KindFor returns the disclosure kind that justifies elevation of the
// given field.
func KindFor(field Field) (string, error) {
	switch field {
	case FieldFeatured:
		return model.DisclosurePromotion, nil
	case FieldVerificationLevel:
		return model.DisclosureVerification, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// IsElevation reports whether moving the field from current to next raises
// the badge. Only elevations require an active disclosure; lowering or
// keeping a badge is always allowed, a previously granted badge is not
// revoked when its disclosure is later deactivated.
func IsElevation(field Field, listing *model.Listing, next string) (bool, error) {
	switch field {
	case FieldFeatured:
		v, err := parseFeatured(next)
		if err != nil {
			return false, err
		}
		return !listing.Featured && v, nil
	case FieldVerificationLevel:
		nextRank, ok := verificationRank[next]
		if !ok {
			return false, fmt.Errorf("%w: verification level %q", ErrUnknownValue, next)
		}
		currentRank, ok := verificationRank[listing.VerificationLevel]
		if !ok {
			// A corrupted stored level is treated as the floor so any
			// recorded level counts as an elevation.
			currentRank = 0
		}
		return nextRank > currentRank, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// IsNoop reports whether the transition leaves the field unchanged.
func IsNoop(field Field, listing *model.Listing, next string) (bool, error) {
	switch field {
	case FieldFeatured:
		v, err := parseFeatured(next)
		if err != nil {
			return false, err
		}
		return listing.Featured == v, nil
	case FieldVerificationLevel:
		if _, ok := verificationRank[next]; !ok {
			return false, fmt.Errorf("%w: verification level %q", ErrUnknownValue, next)
		}
		return listing.VerificationLevel == next, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// CheckTransition validates a gated field transition against the currently
// active disclosure for the matching kind (nil when none is active).
func CheckTransition(field Field, listing *model.Listing, next string, active *model.TrustDisclosure) error {
	elevation, err := IsElevation(field, listing, next)
	if err != nil {
		return err
	}
	if !elevation {
		return nil
	}
	kind, err := KindFor(field)
	if err != nil {
		return err
	}
	if active == nil || !active.IsActive || active.Kind != kind {
		return fmt.Errorf("%w: no active %s disclosure for listing %d", ErrGateViolation, kind, listing.ID)
	}
	return nil
}

// ActivateDisclosure activates a new disclosure for (listing, kind),
// deactivating any prior active disclosure of the same kind in the same
// transaction so that at most one is active at any instant.
func ActivateDisclosure(tx *gorm.DB, listingID uint, kind string, approvedByAdminID uint) (*model.TrustDisclosure, error) {
	now := time.Now()

	result := tx.Model(&model.TrustDisclosure{}).
		Where("listing_id = ? AND kind = ? AND is_active = ?", listingID, kind, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": now})
	if result.Error != nil {
		return nil, result.Error
	}

	disclosure := model.TrustDisclosure{
		ListingID:         listingID,
		Kind:              kind,
		IsActive:          true,
		ApprovedByAdminID: approvedByAdminID,
		ActivatedAt:       &now,
	}
	if result := tx.Create(&disclosure); result.Error != nil {
		return nil, result.Error
	}
	return &disclosure, nil
}

// DeactivateDisclosure marks a disclosure inactive. Already-elevated
// fields keep their state; further elevation is blocked until a new
// disclosure is activated.
func DeactivateDisclosure(tx *gorm.DB, disclosureID uint) error {
	now := time.Now()
	result := tx.Model(&model.TrustDisclosure{}).
		Where("id = ? AND is_active = ?", disclosureID, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
