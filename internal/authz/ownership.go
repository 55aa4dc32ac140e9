package authz

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trust-service/internal/model"
	"trust-service/internal/policy"
)

// ErrNotFound is returned when the target row does not exist. Handlers
// surface it exactly like a denial so lookups cannot be used to probe for
// another tenant's data.
var ErrNotFound = errors.New("resource not found")

// OwnershipIndex loads the ownership facts the policy table evaluates.
// Read-only; the index never mutates anything.
type OwnershipIndex interface {
	Facts(resource policy.Resource, entityID uint) (policy.Facts, error)
	ActiveDisclosure(listingID uint, kind string) (*model.TrustDisclosure, error)
}

// GormOwnershipIndex resolves facts from row snapshots in the database.
type GormOwnershipIndex struct {
	db *gorm.DB
}

// NewOwnershipIndex creates a database-backed ownership index.
func NewOwnershipIndex(db *gorm.DB) *GormOwnershipIndex {
	return &GormOwnershipIndex{db: db}
}

// Facts loads the row for (resource, entityID) and maps it onto the
// ownership facts for policy evaluation.
func (i *GormOwnershipIndex) Facts(resource policy.Resource, entityID uint) (policy.Facts, error) {
	switch resource {
	case policy.ResourceLead:
		var lead model.Lead
		if err := i.first(&lead, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{ConsumerUserID: lead.ConsumerUserID, BusinessID: lead.BusinessID}, nil

	case policy.ResourceConversation:
		var conv model.Conversation
		if err := i.first(&conv, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{ConsumerUserID: conv.ConsumerUserID, BusinessID: conv.BusinessID}, nil

	case policy.ResourceClaimRequest:
		var claim model.ClaimRequest
		if err := i.first(&claim, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{RequesterUserID: claim.RequesterUserID, BusinessID: claim.BusinessID}, nil

	case policy.ResourceAdvisorNote:
		var note model.AdvisorNote
		if err := i.first(&note, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{OwnerUserID: note.AuthorUserID, BusinessID: note.BusinessID}, nil

	case policy.ResourceReview:
		var review model.Review
		if err := i.first(&review, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{
			ConsumerUserID: review.ConsumerUserID,
			BusinessID:     review.BusinessID,
			Published:      review.Status == model.ReviewStatusPublished,
		}, nil

	case policy.ResourceReviewDispute:
		var dispute model.ReviewDispute
		if err := i.first(&dispute, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{RequesterUserID: dispute.RequesterUserID, BusinessID: dispute.BusinessID}, nil

	case policy.ResourceReviewReply:
		var reply model.ReviewReply
		if err := i.first(&reply, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{
			BusinessID: reply.BusinessID,
			Published:  reply.Status == model.ReplyStatusPublished,
		}, nil

	case policy.ResourceTrustConsent:
		var consent model.TrustConsent
		if err := i.first(&consent, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{OwnerUserID: consent.UserID}, nil

	case policy.ResourceListing:
		var listing model.Listing
		if err := i.first(&listing, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{BusinessID: listing.BusinessID, ListingActive: listing.IsActive}, nil

	case policy.ResourceUser:
		var user model.User
		if err := i.first(&user, entityID); err != nil {
			return policy.Facts{}, err
		}
		return policy.Facts{TargetUserID: user.ID}, nil

	default:
		return policy.Facts{}, fmt.Errorf("unknown resource type %q", resource)
	}
}

func (i *GormOwnershipIndex) first(dest interface{}, id uint) error {
	if result := i.db.First(dest, id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return result.Error
	}
	return nil
}

// ActiveDisclosure returns the single active disclosure for the listing
// and kind, or nil when none is active.
func (i *GormOwnershipIndex) ActiveDisclosure(listingID uint, kind string) (*model.TrustDisclosure, error) {
	var disclosure model.TrustDisclosure
	result := i.db.Where("listing_id = ? AND kind = ? AND is_active = ?", listingID, kind, true).
		First(&disclosure)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &disclosure, nil
}
