package principal

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"trust-service/pkg/logger"
)

type MockMembershipSource struct {
	mock.Mock
}

func (m *MockMembershipSource) UserRole(userID uint) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockMembershipSource) ActiveBusinessIDs(userID uint) ([]uint, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func TestMain(m *testing.M) {
	if err := logger.InitLogger(&logger.LogConfig{Level: "error", Environment: "test", ServiceName: "trust-service"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestResolveNilIdentityIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)
	resolver := NewResolver(source)

	p := resolver.Resolve(nil)

	assert.True(t, p.IsAnonymous())
	assert.Equal(t, RoleAnonymous, p.Role)
	source.AssertNotCalled(t, "UserRole")
}

func TestResolveZeroUserIDIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 0})

	assert.True(t, p.IsAnonymous())
	source.AssertNotCalled(t, "UserRole")
}

func TestResolveRoleLookupFailureIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)
	source.On("UserRole", uint(7)).Return("", errors.New("connection refused"))
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 7})

	assert.True(t, p.IsAnonymous())
	assert.Equal(t, uint(0), p.UserID)
	source.AssertExpectations(t)
}

func TestResolveUnknownRoleIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)
	source.On("UserRole", uint(7)).Return("superuser", nil)
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 7})

	assert.True(t, p.IsAnonymous())
	source.AssertNotCalled(t, "ActiveBusinessIDs")
}

func TestResolveMembershipLookupFailureIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)
	source.On("UserRole", uint(7)).Return("advisor", nil)
	source.On("ActiveBusinessIDs", uint(7)).Return(nil, errors.New("timeout"))
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 7})

	assert.True(t, p.IsAnonymous())
	source.AssertExpectations(t)
}

func TestResolveAdvisorWithMemberships(t *testing.T) {
	source := new(MockMembershipSource)
	source.On("UserRole", uint(7)).Return("advisor", nil)
	source.On("ActiveBusinessIDs", uint(7)).Return([]uint{42, 99}, nil)
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 7, EmailVerified: true})

	assert.False(t, p.IsAnonymous())
	assert.Equal(t, RoleAdvisor, p.Role)
	assert.Equal(t, uint(7), p.UserID)
	assert.True(t, p.IsMemberOf(42))
	assert.True(t, p.IsMemberOf(99))
	assert.False(t, p.IsMemberOf(1))
	source.AssertExpectations(t)
}

func TestResolveConsumerHasNoMemberships(t *testing.T) {
	source := new(MockMembershipSource)
	source.On("UserRole", uint(5)).Return("consumer", nil)
	source.On("ActiveBusinessIDs", uint(5)).Return([]uint{}, nil)
	resolver := NewResolver(source)

	p := resolver.Resolve(&Identity{UserID: 5})

	assert.Equal(t, RoleConsumer, p.Role)
	assert.False(t, p.IsAdmin())
	assert.False(t, p.IsMemberOf(42))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleConsumer, ParseRole("consumer"))
	assert.Equal(t, RoleAdvisor, ParseRole("advisor"))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleAnonymous, ParseRole(""))
	assert.Equal(t, RoleAnonymous, ParseRole("moderator"))
}
