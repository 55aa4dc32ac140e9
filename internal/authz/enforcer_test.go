package authz

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trust-service/internal/audit"
	"trust-service/internal/badge"
	"trust-service/internal/model"
	"trust-service/internal/policy"
	"trust-service/internal/principal"
	"trust-service/pkg/logger"
)

type MockOwnershipIndex struct {
	mock.Mock
}

func (m *MockOwnershipIndex) Facts(resource policy.Resource, entityID uint) (policy.Facts, error) {
	args := m.Called(resource, entityID)
	return args.Get(0).(policy.Facts), args.Error(1)
}

func (m *MockOwnershipIndex) ActiveDisclosure(listingID uint, kind string) (*model.TrustDisclosure, error) {
	args := m.Called(listingID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrustDisclosure), args.Error(1)
}

func TestMain(m *testing.M) {
	if err := logger.InitLogger(&logger.LogConfig{Level: "error", Environment: "test", ServiceName: "trust-service"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestAuthorizePure(t *testing.T) {
	e := New(nil, new(MockOwnershipIndex))

	owner := principal.Principal{Role: principal.RoleConsumer, UserID: 5}
	decision := e.Authorize(owner, policy.ResourceLead, policy.ActionRead, policy.Facts{ConsumerUserID: 5, BusinessID: 42})
	assert.True(t, decision.Allowed)

	stranger := principal.Principal{Role: principal.RoleConsumer, UserID: 8}
	decision = e.Authorize(stranger, policy.ResourceLead, policy.ActionRead, policy.Facts{ConsumerUserID: 5, BusinessID: 42})
	assert.False(t, decision.Allowed)
	assert.ErrorIs(t, decision.Err, policy.ErrPermissionDenied)
}

func TestAuthorizeEntityLoadsFacts(t *testing.T) {
	index := new(MockOwnershipIndex)
	index.On("Facts", policy.ResourceLead, uint(17)).
		Return(policy.Facts{ConsumerUserID: 5, BusinessID: 42}, nil)
	e := New(nil, index)

	owner := principal.Principal{Role: principal.RoleConsumer, UserID: 5}
	facts, decision := e.AuthorizeEntity(owner, policy.ResourceLead, policy.ActionRead, 17)

	assert.True(t, decision.Allowed)
	assert.Equal(t, uint(5), facts.ConsumerUserID)
	assert.Equal(t, uint(42), facts.BusinessID)
	index.AssertExpectations(t)
}

func TestAuthorizeEntityMissingRowDenies(t *testing.T) {
	index := new(MockOwnershipIndex)
	index.On("Facts", policy.ResourceLead, uint(999)).Return(policy.Facts{}, ErrNotFound)
	e := New(nil, index)

	p := principal.Principal{Role: principal.RoleAdmin, UserID: 1}
	_, decision := e.AuthorizeEntity(p, policy.ResourceLead, policy.ActionRead, 999)

	// Even admin gets the same "not found" denial shape for a missing row.
	assert.False(t, decision.Allowed)
	assert.Equal(t, "not found", decision.Reason)
	assert.ErrorIs(t, decision.Err, policy.ErrPermissionDenied)
}

func TestAuthorizeEntityLookupErrorDenies(t *testing.T) {
	index := new(MockOwnershipIndex)
	index.On("Facts", policy.ResourceReview, uint(3)).
		Return(policy.Facts{}, errors.New("connection reset"))
	e := New(nil, index)

	p := principal.Principal{Role: principal.RoleConsumer, UserID: 5}
	_, decision := e.AuthorizeEntity(p, policy.ResourceReview, policy.ActionRead, 3)

	assert.False(t, decision.Allowed)
	assert.Equal(t, "not found", decision.Reason)
}

func TestAuthorizeEntityCrossTenantLooksLikeMissing(t *testing.T) {
	index := new(MockOwnershipIndex)
	index.On("Facts", policy.ResourceAdvisorNote, uint(17)).
		Return(policy.Facts{OwnerUserID: 9, BusinessID: 42}, nil)
	e := New(nil, index)

	outsider := principal.Principal{
		Role:        principal.RoleAdvisor,
		UserID:      20,
		BusinessIDs: map[uint]struct{}{7: {}},
	}
	_, decision := e.AuthorizeEntity(outsider, policy.ResourceAdvisorNote, policy.ActionRead, 17)

	assert.False(t, decision.Allowed)
	assert.ErrorIs(t, decision.Err, policy.ErrTenantIsolation)
}

func TestApplyBadgeTransitionDeniedBeforeTouchingStorage(t *testing.T) {
	index := new(MockOwnershipIndex)
	index.On("Facts", policy.ResourceListing, uint(17)).
		Return(policy.Facts{BusinessID: 42, ListingActive: true}, nil)
	// db is nil: a denial must short-circuit before any transaction opens.
	e := New(nil, index)

	outsider := principal.Principal{Role: principal.RoleConsumer, UserID: 5}
	_, err := e.ApplyBadgeTransition(outsider, 17, "featured", "true")

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.False(t, denied.Decision.Allowed)
}

func TestActivateDisclosureAdminOnly(t *testing.T) {
	e := New(nil, new(MockOwnershipIndex))

	advisor := principal.Principal{Role: principal.RoleAdvisor, UserID: 9, BusinessIDs: map[uint]struct{}{42: {}}}
	_, err := e.ActivateDisclosure(advisor, 17, model.DisclosurePromotion)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
}

func TestActivateDisclosureRejectsUnknownKind(t *testing.T) {
	e := New(nil, new(MockOwnershipIndex))

	adminP := principal.Principal{Role: principal.RoleAdmin, UserID: 1}
	_, err := e.ActivateDisclosure(adminP, 17, "celebrity_endorsement")

	assert.ErrorIs(t, err, badge.ErrUnknownValue)
}

func TestDeactivateDisclosureAdminOnly(t *testing.T) {
	e := New(nil, new(MockOwnershipIndex))

	consumerP := principal.Principal{Role: principal.RoleConsumer, UserID: 5}
	err := e.DeactivateDisclosure(consumerP, 3)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
}

func TestMutateWithAuditRejectsUnknownAction(t *testing.T) {
	e := New(nil, new(MockOwnershipIndex))

	_, err := e.MutateWithAudit("trust.listing_deleted", "listing", 1, nil)
	assert.ErrorIs(t, err, audit.ErrUnknownAction)
}

type failingRecorder struct {
	err error
}

func (r *failingRecorder) Record(event *model.AuditEvent) error {
	return r.err
}

type captureRecorder struct {
	events []*model.AuditEvent
}

func (r *captureRecorder) Record(event *model.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestPlanBadgeTransitionNoopSkipsDisclosureAndAudit(t *testing.T) {
	// Re-running an already-applied transition is a no-op: the plan carries
	// no audit action and the disclosure row is never consulted.
	listing := model.Listing{Featured: true, VerificationLevel: model.VerificationBasic}

	loaderCalled := false
	loader := func() (*model.TrustDisclosure, error) {
		loaderCalled = true
		return nil, nil
	}

	plan, err := planBadgeTransition(badge.FieldFeatured, &listing, "true", loader)
	require.NoError(t, err)
	assert.True(t, plan.noop)
	assert.Empty(t, plan.action)
	assert.False(t, loaderCalled)

	plan, err = planBadgeTransition(badge.FieldVerificationLevel, &listing, model.VerificationBasic, loader)
	require.NoError(t, err)
	assert.True(t, plan.noop)
	assert.False(t, loaderCalled)
}

func TestPlanBadgeTransitionSelectsAuditAction(t *testing.T) {
	featured := model.Listing{Featured: false}
	plan, err := planBadgeTransition(badge.FieldFeatured, &featured, "true", func() (*model.TrustDisclosure, error) {
		return &model.TrustDisclosure{Kind: model.DisclosurePromotion, IsActive: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, plan.noop)
	assert.Equal(t, audit.ActionListingPromotionStateChanged, plan.action)

	verified := model.Listing{VerificationLevel: model.VerificationNone}
	plan, err = planBadgeTransition(badge.FieldVerificationLevel, &verified, model.VerificationBasic, func() (*model.TrustDisclosure, error) {
		return &model.TrustDisclosure{Kind: model.DisclosureVerification, IsActive: true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, audit.ActionListingVerificationLevelChanged, plan.action)
}

func TestPlanBadgeTransitionGateViolation(t *testing.T) {
	listing := model.Listing{Featured: false}
	_, err := planBadgeTransition(badge.FieldFeatured, &listing, "true", func() (*model.TrustDisclosure, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, badge.ErrGateViolation)
}

func TestPlanBadgeTransitionLoaderError(t *testing.T) {
	listing := model.Listing{Featured: false}
	boom := errors.New("lock timeout")
	_, err := planBadgeTransition(badge.FieldFeatured, &listing, "true", func() (*model.TrustDisclosure, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunAuditedMutationEmitsEvent(t *testing.T) {
	rec := &captureRecorder{}

	event, err := runAuditedMutation(nil, rec, audit.ActionConsentRecorded, "trust_consent", 5,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			return 17, map[string]interface{}{"granted": true}, nil
		})
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	assert.Equal(t, uint(17), event.EntityID)
	assert.Equal(t, uint(5), event.ActorUserID)
}

func TestRunAuditedMutationAuditFailureAborts(t *testing.T) {
	// A mutation whose audit event cannot be written must not survive: the
	// wrapped failure propagates so the enclosing transaction rolls back.
	rec := &failingRecorder{err: errors.New("insert failed")}

	_, err := runAuditedMutation(nil, rec, audit.ActionReviewReplyCreated, "review_reply", 9,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			return 3, nil, nil
		})
	assert.ErrorIs(t, err, audit.ErrWriteFailure)
}

func TestRunAuditedMutationMutationFailureSkipsAudit(t *testing.T) {
	rec := &captureRecorder{}
	boom := errors.New("constraint violation")

	_, err := runAuditedMutation(nil, rec, audit.ActionConsentRecorded, "trust_consent", 5,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			return 0, nil, boom
		})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.events)
}

func TestDeniedErrorUnwrap(t *testing.T) {
	err := &DeniedError{Decision: policy.Decision{
		Allowed: false,
		Reason:  "cross-tenant",
		Err:     policy.ErrTenantIsolation,
	}}

	assert.ErrorIs(t, err, policy.ErrTenantIsolation)
	assert.Equal(t, "cross-tenant", err.Error())

	empty := &DeniedError{Decision: policy.Decision{}}
	assert.Equal(t, "access denied", empty.Error())
}
