package principal

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trust-service/internal/model"
	"trust-service/pkg/logger"
)

// Identity is what the identity subsystem yields for an authenticated
// request: the user id and whether their email is verified. A nil
// *Identity means the request is anonymous.
type Identity struct {
	UserID        uint
	EmailVerified bool
}

// MembershipSource provides the lookups the resolver needs. Kept as an
// interface so the resolver can be exercised without a live database.
type MembershipSource interface {
	// UserRole returns the persisted role for the user.
	UserRole(userID uint) (string, error)
	// ActiveBusinessIDs returns the businesses the user has an active
	// membership in.
	ActiveBusinessIDs(userID uint) ([]uint, error)
}

// Resolver turns an authenticated identity (or its absence) into a
// Principal. Lookup failures resolve to the anonymous principal rather
// than erroring: downstream policy then denies by default.
type Resolver struct {
	source MembershipSource
}

// NewResolver creates a resolver over the given membership source.
func NewResolver(source MembershipSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve builds the Principal for the request.
func (r *Resolver) Resolve(identity *Identity) Principal {
	if identity == nil || identity.UserID == 0 {
		return Anonymous()
	}

	role, err := r.source.UserRole(identity.UserID)
	if err != nil {
		logger.GetLogger().Warn("identity lookup failed, resolving as anonymous",
			zap.Uint("user_id", identity.UserID),
			zap.Error(err))
		return Anonymous()
	}

	parsed := ParseRole(role)
	if parsed == RoleAnonymous {
		logger.GetLogger().Warn("unknown role value, resolving as anonymous",
			zap.Uint("user_id", identity.UserID),
			zap.String("role", role))
		return Anonymous()
	}

	businessIDs, err := r.source.ActiveBusinessIDs(identity.UserID)
	if err != nil {
		logger.GetLogger().Warn("membership lookup failed, resolving as anonymous",
			zap.Uint("user_id", identity.UserID),
			zap.Error(err))
		return Anonymous()
	}

	memberships := make(map[uint]struct{}, len(businessIDs))
	for _, id := range businessIDs {
		memberships[id] = struct{}{}
	}

	return Principal{
		Role:        parsed,
		UserID:      identity.UserID,
		BusinessIDs: memberships,
	}
}

// GormMembershipSource resolves roles and memberships from the database.
type GormMembershipSource struct {
	db *gorm.DB
}

// NewGormMembershipSource creates a database-backed membership source.
func NewGormMembershipSource(db *gorm.DB) *GormMembershipSource {
	return &GormMembershipSource{db: db}
}

// UserRole returns the persisted role for the user.
func (s *GormMembershipSource) UserRole(userID uint) (string, error) {
	var user model.User
	if result := s.db.Select("role").First(&user, userID); result.Error != nil {
		return "", result.Error
	}
	return user.Role, nil
}

// ActiveBusinessIDs returns the ids of businesses where the user's
// membership status is active.
func (s *GormMembershipSource) ActiveBusinessIDs(userID uint) ([]uint, error) {
	var ids []uint
	result := s.db.Model(&model.BusinessMembership{}).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Pluck("business_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}
