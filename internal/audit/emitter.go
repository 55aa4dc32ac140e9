// Package audit writes the append-only ledger entries that accompany
// sensitive mutations. Emission happens in the same transaction as the
// triggering write: if the audit insert fails the whole transaction rolls
// back, a mutation without its audit trail is worse than no mutation.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trust-service/internal/model"
)

// The closed vocabulary of auditable actions. Adding an action here is a
// deliberate extension, not an ad hoc call-site decision.
const (
	ActionConsentRecorded                 = "trust.consent_recorded"
	ActionListingPromotionStateChanged    = "trust.listing_promotion_state_changed"
	ActionListingVerificationLevelChanged = "trust.listing_verification_level_changed"
	ActionReviewDisputeCreated            = "trust.review_dispute_created"
	ActionReviewReplyCreated              = "trust.review_reply_created"
)

var vocabulary = map[string]struct{}{
	ActionConsentRecorded:                 {},
	ActionListingPromotionStateChanged:    {},
	ActionListingVerificationLevelChanged: {},
	ActionReviewDisputeCreated:            {},
	ActionReviewReplyCreated:              {},
}

var (
	// ErrWriteFailure aborts the enclosing transaction. Audit is a
	// correctness precondition, not best-effort telemetry.
	ErrWriteFailure = errors.New("audit write failed")

	// ErrUnknownAction is returned for actions outside the vocabulary.
	ErrUnknownAction = errors.New("action not in audit vocabulary")
)

// KnownAction reports whether the action belongs to the closed vocabulary.
func KnownAction(action string) bool {
	_, ok := vocabulary[action]
	return ok
}

// Recorder persists a single audit event. The gorm-backed recorder runs
// inside the caller's transaction; tests substitute an in-memory one.
type Recorder interface {
	Record(event *model.AuditEvent) error
}

// GormRecorder writes audit events through the given handle, which is
// expected to be an open transaction.
type GormRecorder struct {
	tx *gorm.DB
}

// NewGormRecorder wraps a transaction handle.
func NewGormRecorder(tx *gorm.DB) *GormRecorder {
	return &GormRecorder{tx: tx}
}

// Record inserts the event row.
func (r *GormRecorder) Record(event *model.AuditEvent) error {
	return r.tx.Create(event).Error
}

// Emit validates the action, builds the event and writes it through the
// recorder. Any recorder error is wrapped as ErrWriteFailure so callers
// roll back the enclosing transaction.
func Emit(rec Recorder, action, entityType string, entityID, actorUserID uint, metadata map[string]interface{}) (*model.AuditEvent, error) {
	if !KnownAction(action) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var payload []byte
	if metadata != nil {
		var err error
		payload, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding metadata: %v", ErrWriteFailure, err)
		}
	}

	event := &model.AuditEvent{
		EventID:     uuid.New().String(),
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		ActorUserID: actorUserID,
		Metadata:    payload,
		OccurredAt:  time.Now(),
	}

	if err := rec.Record(event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return event, nil
}
