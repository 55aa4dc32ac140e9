// Package authz is the single chokepoint for protected reads and writes.
// Handlers never decide access themselves and never mutate gated state
// directly: every check goes through Enforcer, which composes the policy
// table, the ownership index, the badge gate and the audit emitter.
package authz

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trust-service/internal/audit"
	"trust-service/internal/badge"
	"trust-service/internal/model"
	"trust-service/internal/policy"
	"trust-service/internal/principal"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

// DeniedError wraps a policy denial so callers can branch on the
// classification while keeping the structured reason.
type DeniedError struct {
	Decision policy.Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Reason != "" {
		return e.Decision.Reason
	}
	return "access denied"
}

// Unwrap exposes the denial classification (policy.ErrPermissionDenied,
// policy.ErrTenantIsolation or policy.ErrRoleEscalation).
func (e *DeniedError) Unwrap() error {
	return e.Decision.Err
}

// Enforcer composes the policy engine. All methods are safe for
// concurrent use; decisions are pure functions of their inputs.
type Enforcer struct {
	db    *gorm.DB
	table *policy.Table
	index OwnershipIndex
}

// New creates the enforcement point over the given database handle and
// ownership index.
func New(db *gorm.DB, index OwnershipIndex) *Enforcer {
	return &Enforcer{db: db, table: policy.NewTable(), index: index}
}

// Authorize evaluates the policy table against already-loaded facts.
// Pure: no storage access, no side effects beyond metrics.
func (e *Enforcer) Authorize(p principal.Principal, resource policy.Resource, action policy.Action, facts policy.Facts) policy.Decision {
	decision := e.table.Evaluate(p, resource, action, facts)
	prometheus.RecordAuthzDecision(string(resource), string(action), decision.Allowed)
	if !decision.Allowed {
		logger.GetLogger().Debug("authorization denied",
			zap.String("resource", string(resource)),
			zap.String("action", string(action)),
			zap.Uint("user_id", p.UserID),
			zap.String("role", string(p.Role)),
			zap.String("reason", decision.Reason))
	}
	return decision
}

// AuthorizeEntity loads ownership facts for the entity and evaluates the
// policy. A missing entity yields a denial indistinguishable from one for
// an entity the principal may not see.
func (e *Enforcer) AuthorizeEntity(p principal.Principal, resource policy.Resource, action policy.Action, entityID uint) (policy.Facts, policy.Decision) {
	facts, err := e.index.Facts(resource, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			prometheus.RecordAuthzDecision(string(resource), string(action), false)
			return policy.Facts{}, policy.Decision{
				Allowed: false,
				Reason:  "not found",
				Err:     policy.ErrPermissionDenied,
			}
		}
		logger.GetLogger().Error("ownership lookup failed",
			zap.String("resource", string(resource)),
			zap.Uint("entity_id", entityID),
			zap.Error(err))
		prometheus.RecordAuthzDecision(string(resource), string(action), false)
		return policy.Facts{}, policy.Decision{
			Allowed: false,
			Reason:  "not found",
			Err:     policy.ErrPermissionDenied,
		}
	}
	return facts, e.Authorize(p, resource, action, facts)
}

// transitionPlan is the decided outcome of one badge write: either a
// no-op or an applied change with its audit action.
type transitionPlan struct {
	noop   bool
	action string
}

// planBadgeTransition decides what a badge write will do against the
// current listing state. The active disclosure is loaded lazily through
// loadActive: a no-op never touches the disclosure row and never reaches
// the audit path.
func planBadgeTransition(field badge.Field, listing *model.Listing, newValue string, loadActive func() (*model.TrustDisclosure, error)) (transitionPlan, error) {
	noop, err := badge.IsNoop(field, listing, newValue)
	if err != nil {
		return transitionPlan{}, err
	}
	if noop {
		return transitionPlan{noop: true}, nil
	}

	active, err := loadActive()
	if err != nil {
		return transitionPlan{}, err
	}
	if err := badge.CheckTransition(field, listing, newValue, active); err != nil {
		return transitionPlan{}, err
	}

	action := audit.ActionListingPromotionStateChanged
	if field == badge.FieldVerificationLevel {
		action = audit.ActionListingVerificationLevelChanged
	}
	return transitionPlan{action: action}, nil
}

// ApplyBadgeTransition performs an authorized, gated, audited change to
// one of the two badge fields. The gate check, the field write and the
// audit insert execute as one transaction; the listing and disclosure
// rows are locked so a concurrent deactivation cannot slip between check
// and write.
func (e *Enforcer) ApplyBadgeTransition(p principal.Principal, listingID uint, field badge.Field, newValue string) (*model.Listing, error) {
	_, decision := e.AuthorizeEntity(p, policy.ResourceListing, policy.ActionUpdate, listingID)
	if !decision.Allowed {
		prometheus.RecordBadgeTransition(string(field), "denied")
		return nil, &DeniedError{Decision: decision}
	}

	kind, err := badge.KindFor(field)
	if err != nil {
		return nil, err
	}

	tx := e.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var listing model.Listing
	if result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, listingID); result.Error != nil {
		tx.Rollback()
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}

	plan, err := planBadgeTransition(field, &listing, newValue, func() (*model.TrustDisclosure, error) {
		var active model.TrustDisclosure
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ? AND kind = ? AND is_active = ?", listingID, kind, true).
			First(&active)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, result.Error
		}
		return &active, nil
	})
	if err != nil {
		tx.Rollback()
		if errors.Is(err, badge.ErrGateViolation) {
			prometheus.RecordBadgeTransition(string(field), "rejected")
		}
		return nil, err
	}
	if plan.noop {
		// Re-running the same transition changes nothing and emits no
		// further audit event.
		tx.Rollback()
		prometheus.RecordBadgeTransition(string(field), "noop")
		return &listing, nil
	}

	oldValue := currentValue(field, &listing)
	if err := applyValue(tx, &listing, field, newValue); err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := audit.Emit(audit.NewGormRecorder(tx), plan.action, "listing", listing.ID, p.UserID, map[string]interface{}{
		"field": string(field),
		"old":   oldValue,
		"new":   newValue,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	prometheus.RecordBadgeTransition(string(field), "applied")
	logger.GetLogger().Info("badge transition applied",
		zap.Uint("listing_id", listing.ID),
		zap.String("field", string(field)),
		zap.String("old", oldValue),
		zap.String("new", newValue),
		zap.Uint("actor_user_id", p.UserID))

	return &listing, nil
}

func currentValue(field badge.Field, listing *model.Listing) string {
	if field == badge.FieldFeatured {
		return fmt.Sprintf("%t", listing.Featured)
	}
	return listing.VerificationLevel
}

func applyValue(tx *gorm.DB, listing *model.Listing, field badge.Field, newValue string) error {
	switch field {
	case badge.FieldFeatured:
		v := newValue == "true"
		if err := tx.Model(listing).Update("featured", v).Error; err != nil {
			return err
		}
		listing.Featured = v
	case badge.FieldVerificationLevel:
		if err := tx.Model(listing).Update("verification_level", newValue).Error; err != nil {
			return err
		}
		listing.VerificationLevel = newValue
	default:
		return badge.ErrUnknownField
	}
	return nil
}

// ActivateDisclosure creates and activates a disclosure for the listing,
// retiring any prior active disclosure of the same kind in the same
// transaction. Admin only.
func (e *Enforcer) ActivateDisclosure(p principal.Principal, listingID uint, kind string) (*model.TrustDisclosure, error) {
	if !p.IsAdmin() {
		return nil, &DeniedError{Decision: policy.Decision{
			Allowed: false,
			Reason:  "only admin may manage disclosures",
			Err:     policy.ErrPermissionDenied,
		}}
	}
	if kind != model.DisclosurePromotion && kind != model.DisclosureVerification {
		return nil, fmt.Errorf("%w: disclosure kind %q", badge.ErrUnknownValue, kind)
	}

	var disclosure *model.TrustDisclosure
	err := e.db.Transaction(func(tx *gorm.DB) error {
		// The listing row is the serialization point for disclosure
		// activation: two concurrent activations for the same (listing,
		// kind) must not both observe zero active rows.
		var listing model.Listing
		if result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, listingID); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return result.Error
		}
		var err error
		disclosure, err = badge.ActivateDisclosure(tx, listingID, kind, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	prometheus.RecordDisclosureOperation("activate", kind)
	e.refreshActiveDisclosures(kind)
	return disclosure, nil
}

// DeactivateDisclosure marks a disclosure inactive. Admin only. Already
// elevated badge fields keep their state.
func (e *Enforcer) DeactivateDisclosure(p principal.Principal, disclosureID uint) error {
	if !p.IsAdmin() {
		return &DeniedError{Decision: policy.Decision{
			Allowed: false,
			Reason:  "only admin may manage disclosures",
			Err:     policy.ErrPermissionDenied,
		}}
	}
	var kind string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var disclosure model.TrustDisclosure
		if result := tx.First(&disclosure, disclosureID); result.Error != nil {
			return result.Error
		}
		kind = disclosure.Kind
		return badge.DeactivateDisclosure(tx, disclosureID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	prometheus.RecordDisclosureOperation("deactivate", kind)
	e.refreshActiveDisclosures(kind)
	return nil
}

// refreshActiveDisclosures recomputes the active-disclosure gauge for a
// kind after a lifecycle change. A failed count leaves the gauge stale
// until the next change; it never fails the triggering operation.
func (e *Enforcer) refreshActiveDisclosures(kind string) {
	var count int64
	if err := e.db.Model(&model.TrustDisclosure{}).
		Where("kind = ? AND is_active = ?", kind, true).
		Count(&count).Error; err != nil {
		return
	}
	prometheus.UpdateActiveDisclosures(kind, int(count))
}

// MutateWithAudit runs the mutation and its mandated audit emission in a
// single transaction. The mutate callback returns the entity id and
// action-specific metadata for the event; any error, including an audit
// write failure, rolls the whole transaction back.
func (e *Enforcer) MutateWithAudit(action, entityType string, actorUserID uint, mutate func(tx *gorm.DB) (uint, map[string]interface{}, error)) (*model.AuditEvent, error) {
	if !audit.KnownAction(action) {
		return nil, fmt.Errorf("%w: %q", audit.ErrUnknownAction, action)
	}

	var event *model.AuditEvent
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = runAuditedMutation(tx, audit.NewGormRecorder(tx), action, entityType, actorUserID, mutate)
		return err
	})
	if err != nil {
		return nil, err
	}
	prometheus.RecordAuditEvent(action)
	return event, nil
}

// runAuditedMutation executes the mutation and emits its audit event
// through the recorder. Any error aborts the pair, so the enclosing
// transaction rolls back with nothing half-written.
func runAuditedMutation(tx *gorm.DB, rec audit.Recorder, action, entityType string, actorUserID uint, mutate func(tx *gorm.DB) (uint, map[string]interface{}, error)) (*model.AuditEvent, error) {
	entityID, metadata, err := mutate(tx)
	if err != nil {
		return nil, err
	}
	return audit.Emit(rec, action, entityType, entityID, actorUserID, metadata)
}

// RecordAuditableMutation appends an audit event for a mutation already
// performed by the caller inside its own lifecycle. Kept for route code
// that owns its transaction boundaries.
func (e *Enforcer) RecordAuditableMutation(action, entityType string, entityID, actorUserID uint, metadata map[string]interface{}) (*model.AuditEvent, error) {
	return e.MutateWithAudit(action, entityType, actorUserID, func(tx *gorm.DB) (uint, map[string]interface{}, error) {
		return entityID, metadata, nil
	})
}
