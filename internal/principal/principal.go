package principal

import "trust-service/internal/model"

// Role is the closed set of roles the policy layer reasons about. Unknown
// role strings from storage or tokens normalise to RoleAnonymous so that
// deny-by-default applies.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleConsumer  Role = "consumer"
	RoleAdvisor   Role = "advisor"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored role string onto the closed Role set.
func ParseRole(s string) Role {
	switch s {
	case model.RoleConsumer:
		return RoleConsumer
	case model.RoleAdvisor:
		return RoleAdvisor
	case model.RoleAdmin:
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}

// Principal is the resolved identity and permission context for a request.
// BusinessIDs holds the businesses the user is an active member of; it is
// the sole source of advisor-side visibility.
type Principal struct {
	Role        Role
	UserID      uint
	BusinessIDs map[uint]struct{}
}

// Anonymous returns the principal used for unauthenticated requests and
// for any request whose identity could not be resolved.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous}
}

// IsAnonymous reports whether the principal carries no authenticated user.
func (p Principal) IsAnonymous() bool {
	return p.Role == RoleAnonymous || p.UserID == 0
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsMemberOf reports whether the principal is an active member of the
// given business.
func (p Principal) IsMemberOf(businessID uint) bool {
	_, ok := p.BusinessIDs[businessID]
	return ok
}
