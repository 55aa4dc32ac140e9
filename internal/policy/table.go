// Package policy centralizes authorization decisions for the marketplace.
// Handlers call Table.Evaluate through the enforcement point instead of
// performing ad-hoc permission checks.
package policy

import (
	"fmt"

	"trust-service/internal/principal"
)

// Predicate decides admission for one (resource, action) pair.
type Predicate func(p principal.Principal, f Facts) Decision

// Table is the declarative rule set. Absence of a matching permissive
// clause is a denial, never an implicit allow.
type Table struct {
	rules map[Resource]map[Action]Predicate
}

// Evaluate decides whether the principal may perform the action on the
// resource described by the given facts. Pure and safe for concurrent use.
func (t *Table) Evaluate(p principal.Principal, resource Resource, action Action, f Facts) Decision {
	// Self-role-escalation is denied before any role short-circuit: no
	// principal, including admin, changes its own role through this path.
	if resource == ResourceUser && action == ActionUpdate && f.RoleChange && p.UserID == f.TargetUserID {
		return deny(ErrRoleEscalation, "cannot change own role")
	}

	// Admin short-circuits to allow for read of anything.
	if p.IsAdmin() && action == ActionRead {
		return allow()
	}

	actions, ok := t.rules[resource]
	if !ok {
		return deny(ErrPermissionDenied, fmt.Sprintf("no policy for resource %q", resource))
	}
	rule, ok := actions[action]
	if !ok {
		return deny(ErrPermissionDenied, fmt.Sprintf("no policy for %s on %s", action, resource))
	}
	return rule(p, f)
}

// NewTable builds the canonical rule set.
func NewTable() *Table {
	t := &Table{rules: make(map[Resource]map[Action]Predicate)}

	t.rules[ResourceLead] = map[Action]Predicate{
		ActionCreate: createAsOwningConsumer,
		ActionRead:   readDualOwned,
		ActionUpdate: updateByBusinessOrAdmin,
		ActionDelete: adminOnly("only admin may delete leads"),
	}

	t.rules[ResourceConversation] = map[Action]Predicate{
		ActionCreate: createAsOwningConsumer,
		ActionRead:   readDualOwned,
		// Appending messages: any party that can read the conversation.
		ActionUpdate: readDualOwned,
		ActionDelete: adminOnly("only admin may delete conversations"),
	}

	t.rules[ResourceClaimRequest] = map[Action]Predicate{
		ActionCreate: createAsRequester,
		ActionRead:   readRequesterOrAdmin,
		ActionUpdate: adminOnly("only admin may decide claim requests"),
		ActionDelete: adminOnly("only admin may delete claim requests"),
	}

	t.rules[ResourceAdvisorNote] = map[Action]Predicate{
		ActionCreate: writeByBusinessMember("only members of the owning business may create notes"),
		ActionRead:   readBusinessInternal,
		ActionUpdate: writeByBusinessMember("only members of the owning business may update notes"),
		ActionDelete: writeByBusinessMember("only members of the owning business may delete notes"),
	}

	t.rules[ResourceReview] = map[Action]Predicate{
		ActionCreate: createAsOwningConsumer,
		ActionRead:   readPublishable(readOwningConsumer),
		ActionUpdate: updateReview,
		ActionDelete: adminOnly("only admin may delete reviews"),
	}

	t.rules[ResourceReviewDispute] = map[Action]Predicate{
		ActionCreate: createAsRequester,
		ActionRead:   readDisputeParties,
		ActionUpdate: adminOnly("only admin may resolve disputes"),
		ActionDelete: adminOnly("only admin may delete disputes"),
	}

	t.rules[ResourceReviewReply] = map[Action]Predicate{
		ActionCreate: writeByBusinessMember("only members of the business may reply"),
		ActionRead:   readPublishable(readBusinessInternal),
		ActionUpdate: writeByBusinessMember("only members of the business may update replies"),
		ActionDelete: adminOnly("only admin may delete replies"),
	}

	t.rules[ResourceTrustConsent] = map[Action]Predicate{
		ActionCreate: createAsConsentOwner,
		ActionRead:   readConsentOwnerOrAdmin,
		// Consents are append-style acknowledgements; they are never
		// updated or deleted, a new record supersedes the old.
	}

	t.rules[ResourceListing] = map[Action]Predicate{
		ActionCreate: updateByBusinessOrAdmin,
		ActionRead:   readListing,
		ActionUpdate: updateByBusinessOrAdmin,
		ActionDelete: updateByBusinessOrAdmin,
	}

	t.rules[ResourceUser] = map[Action]Predicate{
		ActionRead:   readUserSelfOrAdmin,
		ActionUpdate: updateUser,
		ActionDelete: adminOnly("only admin may delete users"),
	}

	return t
}

// denyTenantAware classifies a membership miss: a principal that holds
// memberships elsewhere but not in the resource's business is attempting
// cross-tenant access; everyone else is a plain permission denial.
func denyTenantAware(p principal.Principal, f Facts, reason string) Decision {
	if len(p.BusinessIDs) > 0 && f.BusinessID != 0 && !p.IsMemberOf(f.BusinessID) {
		return deny(ErrTenantIsolation, reason)
	}
	return deny(ErrPermissionDenied, reason)
}

func adminOnly(reason string) Predicate {
	return func(p principal.Principal, f Facts) Decision {
		if p.IsAdmin() {
			return allow()
		}
		return deny(ErrPermissionDenied, reason)
	}
}

// createAsOwningConsumer admits creation only when the actor is the
// consumer named on the resource. Impersonating another consumer is
// denied for every role except admin.
func createAsOwningConsumer(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.IsAnonymous() {
		return deny(ErrPermissionDenied, "authentication required")
	}
	if p.UserID != f.ConsumerUserID {
		return deny(ErrPermissionDenied, "cannot create on behalf of another consumer")
	}
	return allow()
}

// readDualOwned covers the lead/conversation shape: owning consumer,
// members of the owning business, or admin.
func readDualOwned(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.IsAnonymous() {
		return deny(ErrPermissionDenied, "authentication required")
	}
	if p.UserID == f.ConsumerUserID {
		return allow()
	}
	if p.IsMemberOf(f.BusinessID) {
		return allow()
	}
	return denyTenantAware(p, f, "not the owning consumer or a member of the business")
}

func updateByBusinessOrAdmin(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.IsMemberOf(f.BusinessID) {
		return allow()
	}
	return denyTenantAware(p, f, "not a member of the owning business")
}

func createAsRequester(p principal.Principal, f Facts) Decision {
	if p.IsAnonymous() {
		return deny(ErrPermissionDenied, "authentication required")
	}
	if p.UserID != f.RequesterUserID {
		return deny(ErrPermissionDenied, "cannot create on behalf of another user")
	}
	return allow()
}

func readRequesterOrAdmin(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if !p.IsAnonymous() && p.UserID == f.RequesterUserID {
		return allow()
	}
	// Deliberately no business clause: the business named in a claim must
	// not see who is trying to claim it.
	return deny(ErrPermissionDenied, "not the requester")
}

// readBusinessInternal is the advisor-note shape: strictly internal to the
// owning business. The consumer the record concerns is never admitted.
func readBusinessInternal(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.IsMemberOf(f.BusinessID) {
		return allow()
	}
	return denyTenantAware(p, f, "internal to the owning business")
}

func writeByBusinessMember(reason string) Predicate {
	return func(p principal.Principal, f Facts) Decision {
		if p.IsMemberOf(f.BusinessID) {
			return allow()
		}
		return denyTenantAware(p, f, reason)
	}
}

// readPublishable allows anyone, including anonymous, to read a published
// record, and defers to the wrapped predicate otherwise.
func readPublishable(unpublished Predicate) Predicate {
	return func(p principal.Principal, f Facts) Decision {
		if f.Published {
			return allow()
		}
		return unpublished(p, f)
	}
}

func readOwningConsumer(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if !p.IsAnonymous() && p.UserID == f.ConsumerUserID {
		return allow()
	}
	return deny(ErrPermissionDenied, "review not published")
}

func updateReview(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	// The owning consumer may edit only before publication.
	if !p.IsAnonymous() && p.UserID == f.ConsumerUserID && !f.Published {
		return allow()
	}
	return deny(ErrPermissionDenied, "only admin may moderate reviews")
}

func readDisputeParties(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.IsAnonymous() {
		return deny(ErrPermissionDenied, "authentication required")
	}
	if p.UserID == f.RequesterUserID {
		return allow()
	}
	if p.IsMemberOf(f.BusinessID) {
		return allow()
	}
	return denyTenantAware(p, f, "not a party to the dispute")
}

func createAsConsentOwner(p principal.Principal, f Facts) Decision {
	if p.IsAnonymous() {
		return deny(ErrPermissionDenied, "authentication required")
	}
	if p.UserID != f.OwnerUserID {
		return deny(ErrPermissionDenied, "consent is self-attested")
	}
	return allow()
}

func readConsentOwnerOrAdmin(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if !p.IsAnonymous() && p.UserID == f.OwnerUserID {
		return allow()
	}
	return deny(ErrPermissionDenied, "not the consent owner")
}

// readListing admits anyone while the listing is active; the full record
// of an inactive listing is only visible to the owning business and admin.
func readListing(p principal.Principal, f Facts) Decision {
	if f.ListingActive {
		return allow()
	}
	if p.IsAdmin() {
		return allow()
	}
	if p.IsMemberOf(f.BusinessID) {
		return allow()
	}
	return denyTenantAware(p, f, "listing not active")
}

func readUserSelfOrAdmin(p principal.Principal, f Facts) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if !p.IsAnonymous() && p.UserID == f.TargetUserID {
		return allow()
	}
	return deny(ErrPermissionDenied, "not your user record")
}

func updateUser(p principal.Principal, f Facts) Decision {
	if f.RoleChange {
		// Self-change is rejected in Evaluate before this predicate runs;
		// here only admin acting on another user remains permissible.
		if p.IsAdmin() {
			return allow()
		}
		return deny(ErrRoleEscalation, "only admin may change roles")
	}
	if p.IsAdmin() {
		return allow()
	}
	if !p.IsAnonymous() && p.UserID == f.TargetUserID {
		return allow()
	}
	return deny(ErrPermissionDenied, "not your user record")
}
