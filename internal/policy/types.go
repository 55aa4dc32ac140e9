package policy

import "errors"

// Resource identifies a protected resource type.
type Resource string

const (
	ResourceLead          Resource = "lead"
	ResourceConversation  Resource = "conversation"
	ResourceClaimRequest  Resource = "claim_request"
	ResourceAdvisorNote   Resource = "advisor_note"
	ResourceReview        Resource = "review"
	ResourceReviewDispute Resource = "review_dispute"
	ResourceReviewReply   Resource = "review_reply"
	ResourceTrustConsent  Resource = "trust_consent"
	ResourceListing       Resource = "listing"
	ResourceUser          Resource = "user"
)

// Action identifies what the principal wants to do with the resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Denial taxonomy. Handlers map these onto 403/404 responses; cross-tenant
// denials deliberately surface as "not found" so the existence of another
// tenant's data never leaks.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrTenantIsolation  = errors.New("cross-tenant access blocked")
	ErrRoleEscalation   = errors.New("self role change blocked")
)

// Facts are the ownership facts a predicate may consult. They are a
// snapshot loaded by the ownership index before evaluation; predicates
// themselves never touch storage.
type Facts struct {
	ConsumerUserID  uint // lead/conversation/review owner
	RequesterUserID uint // claim request / dispute requester
	OwnerUserID     uint // consent owner, note author
	BusinessID      uint // tenant of the resource, zero if not tenant-scoped
	TargetUserID    uint // user row being modified
	Published       bool // review/reply publication state
	ListingActive   bool // listing visibility for anonymous reads
	RoleChange      bool // set when a user update touches the role column
}

// Decision is the outcome of a policy evaluation. Err carries the denial
// classification when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(err error, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Err: err}
}
