package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trust-service/internal/principal"
)

func consumer(userID uint) principal.Principal {
	return principal.Principal{Role: principal.RoleConsumer, UserID: userID}
}

func advisor(userID uint, businessIDs ...uint) principal.Principal {
	memberships := make(map[uint]struct{}, len(businessIDs))
	for _, id := range businessIDs {
		memberships[id] = struct{}{}
	}
	return principal.Principal{Role: principal.RoleAdvisor, UserID: userID, BusinessIDs: memberships}
}

func admin(userID uint) principal.Principal {
	return principal.Principal{Role: principal.RoleAdmin, UserID: userID}
}

func TestTableEvaluate(t *testing.T) {
	table := NewTable()

	tests := []struct {
		name      string
		principal principal.Principal
		resource  Resource
		action    Action
		facts     Facts
		allowed   bool
		wantErr   error
	}{
		{
			name:      "unknown resource denies by default",
			principal: admin(1),
			resource:  Resource("webhook"),
			action:    ActionCreate,
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "unknown action denies by default",
			principal: consumer(5),
			resource:  ResourceTrustConsent,
			action:    ActionDelete,
			facts:     Facts{OwnerUserID: 5},
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "admin reads anything",
			principal: admin(1),
			resource:  ResourceAdvisorNote,
			action:    ActionRead,
			facts:     Facts{BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "consumer creates own lead",
			principal: consumer(5),
			resource:  ResourceLead,
			action:    ActionCreate,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "consumer cannot create lead for another consumer",
			principal: consumer(5),
			resource:  ResourceLead,
			action:    ActionCreate,
			facts:     Facts{ConsumerUserID: 6, BusinessID: 42},
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "anonymous cannot create lead",
			principal: principal.Anonymous(),
			resource:  ResourceLead,
			action:    ActionCreate,
			facts:     Facts{ConsumerUserID: 0},
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "owning consumer reads own lead",
			principal: consumer(5),
			resource:  ResourceLead,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "business member reads business lead",
			principal: advisor(9, 42),
			resource:  ResourceLead,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "member of another business cannot read lead",
			principal: advisor(9, 7),
			resource:  ResourceLead,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   false,
			wantErr:   ErrTenantIsolation,
		},
		{
			name:      "unrelated consumer cannot read lead",
			principal: consumer(8),
			resource:  ResourceLead,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "business member updates lead status",
			principal: advisor(9, 42),
			resource:  ResourceLead,
			action:    ActionUpdate,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "owning consumer cannot update lead status",
			principal: consumer(5),
			resource:  ResourceLead,
			action:    ActionUpdate,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   false,
		},
		{
			name:      "conversation party appends message",
			principal: consumer(5),
			resource:  ResourceConversation,
			action:    ActionUpdate,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "requester reads own claim request",
			principal: advisor(9, 7),
			resource:  ResourceClaimRequest,
			action:    ActionRead,
			facts:     Facts{RequesterUserID: 9, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "claimed business members cannot see claim requests",
			principal: advisor(9, 42),
			resource:  ResourceClaimRequest,
			action:    ActionRead,
			facts:     Facts{RequesterUserID: 3, BusinessID: 42},
			allowed:   false,
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "only admin decides claim requests",
			principal: advisor(9, 42),
			resource:  ResourceClaimRequest,
			action:    ActionUpdate,
			facts:     Facts{RequesterUserID: 3, BusinessID: 42},
			allowed:   false,
		},
		{
			name:      "admin decides claim requests",
			principal: admin(1),
			resource:  ResourceClaimRequest,
			action:    ActionUpdate,
			facts:     Facts{RequesterUserID: 3, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "advisor note internal to business",
			principal: advisor(9, 42),
			resource:  ResourceAdvisorNote,
			action:    ActionRead,
			facts:     Facts{OwnerUserID: 9, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "subject consumer never reads advisor note about them",
			principal: consumer(5),
			resource:  ResourceAdvisorNote,
			action:    ActionRead,
			facts:     Facts{BusinessID: 42, TargetUserID: 5},
			allowed:   false,
		},
		{
			name:      "anyone reads published review",
			principal: principal.Anonymous(),
			resource:  ResourceReview,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42, Published: true},
			allowed:   true,
		},
		{
			name:      "author reads own unpublished review",
			principal: consumer(5),
			resource:  ResourceReview,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42, Published: false},
			allowed:   true,
		},
		{
			name:      "business cannot read unpublished review",
			principal: advisor(9, 42),
			resource:  ResourceReview,
			action:    ActionRead,
			facts:     Facts{ConsumerUserID: 5, BusinessID: 42, Published: false},
			allowed:   false,
		},
		{
			name:      "author edits review before publication",
			principal: consumer(5),
			resource:  ResourceReview,
			action:    ActionUpdate,
			facts:     Facts{ConsumerUserID: 5, Published: false},
			allowed:   true,
		},
		{
			name:      "author cannot edit review after publication",
			principal: consumer(5),
			resource:  ResourceReview,
			action:    ActionUpdate,
			facts:     Facts{ConsumerUserID: 5, Published: true},
			allowed:   false,
		},
		{
			name:      "business member replies to review",
			principal: advisor(9, 42),
			resource:  ResourceReviewReply,
			action:    ActionCreate,
			facts:     Facts{BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "reviewer reads own dispute",
			principal: consumer(5),
			resource:  ResourceReviewDispute,
			action:    ActionRead,
			facts:     Facts{RequesterUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "business member reads dispute on its review",
			principal: advisor(9, 42),
			resource:  ResourceReviewDispute,
			action:    ActionRead,
			facts:     Facts{RequesterUserID: 5, BusinessID: 42},
			allowed:   true,
		},
		{
			name:      "consent is self attested",
			principal: consumer(5),
			resource:  ResourceTrustConsent,
			action:    ActionCreate,
			facts:     Facts{OwnerUserID: 6},
			allowed:   false,
		},
		{
			name:      "consent owner reads own consents",
			principal: consumer(5),
			resource:  ResourceTrustConsent,
			action:    ActionRead,
			facts:     Facts{OwnerUserID: 5},
			allowed:   true,
		},
		{
			name:      "anonymous reads active listing",
			principal: principal.Anonymous(),
			resource:  ResourceListing,
			action:    ActionRead,
			facts:     Facts{BusinessID: 42, ListingActive: true},
			allowed:   true,
		},
		{
			name:      "anonymous cannot read inactive listing",
			principal: principal.Anonymous(),
			resource:  ResourceListing,
			action:    ActionRead,
			facts:     Facts{BusinessID: 42, ListingActive: false},
			allowed:   false,
		},
		{
			name:      "owning business reads inactive listing",
			principal: advisor(9, 42),
			resource:  ResourceListing,
			action:    ActionRead,
			facts:     Facts{BusinessID: 42, ListingActive: false},
			allowed:   true,
		},
		{
			name:      "user reads own record",
			principal: consumer(5),
			resource:  ResourceUser,
			action:    ActionRead,
			facts:     Facts{TargetUserID: 5},
			allowed:   true,
		},
		{
			name:      "user cannot read another user record",
			principal: consumer(5),
			resource:  ResourceUser,
			action:    ActionRead,
			facts:     Facts{TargetUserID: 6},
			allowed:   false,
		},
		{
			name:      "admin changes another user's role",
			principal: admin(1),
			resource:  ResourceUser,
			action:    ActionUpdate,
			facts:     Facts{TargetUserID: 6, RoleChange: true},
			allowed:   true,
		},
		{
			name:      "admin cannot change own role",
			principal: admin(1),
			resource:  ResourceUser,
			action:    ActionUpdate,
			facts:     Facts{TargetUserID: 1, RoleChange: true},
			allowed:   false,
			wantErr:   ErrRoleEscalation,
		},
		{
			name:      "consumer cannot change any role",
			principal: consumer(5),
			resource:  ResourceUser,
			action:    ActionUpdate,
			facts:     Facts{TargetUserID: 6, RoleChange: true},
			allowed:   false,
			wantErr:   ErrRoleEscalation,
		},
		{
			name:      "user updates own non-role fields",
			principal: consumer(5),
			resource:  ResourceUser,
			action:    ActionUpdate,
			facts:     Facts{TargetUserID: 5, RoleChange: false},
			allowed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := table.Evaluate(tt.principal, tt.resource, tt.action, tt.facts)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Error(t, decision.Err)
				assert.NotEmpty(t, decision.Reason)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, decision.Err, tt.wantErr)
			}
		})
	}
}

func TestAdminReadShortCircuitDoesNotCoverWrites(t *testing.T) {
	table := NewTable()

	// Admin reads flow through the short-circuit, but writes still consult
	// the per-resource rules so consent creation stays self-attested.
	decision := table.Evaluate(admin(1), ResourceTrustConsent, ActionCreate, Facts{OwnerUserID: 6})
	assert.False(t, decision.Allowed)
}
