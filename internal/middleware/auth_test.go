package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trust-service/internal/principal"
	"trust-service/pkg/config"
	"trust-service/pkg/jwtutil"
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
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	os.Exit(m.Run())
}

func runPrincipalMiddleware(t *testing.T, source principal.MembershipSource, authHeader string) principal.Principal {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured principal.Principal
	handler := PrincipalMiddleware(principal.NewResolver(source))(func(c echo.Context) error {
		captured = principal.FromEcho(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return captured
}

func TestPrincipalMiddlewareNoTokenIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)

	p := runPrincipalMiddleware(t, source, "")

	assert.True(t, p.IsAnonymous())
	source.AssertNotCalled(t, "UserRole")
}

func TestPrincipalMiddlewareMalformedHeaderIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)

	p := runPrincipalMiddleware(t, source, "Token abc123")

	assert.True(t, p.IsAnonymous())
}

func TestPrincipalMiddlewareGarbageTokenIsAnonymous(t *testing.T) {
	source := new(MockMembershipSource)

	p := runPrincipalMiddleware(t, source, "Bearer not.a.jwt")

	assert.True(t, p.IsAnonymous())
	source.AssertNotCalled(t, "UserRole")
}

func TestPrincipalMiddlewareValidTokenResolvesPrincipal(t *testing.T) {
	token, err := jwtutil.GenerateToken("advisor@example.com", 7, "advisor", true)
	require.NoError(t, err)

	source := new(MockMembershipSource)
	source.On("UserRole", uint(7)).Return("advisor", nil)
	source.On("ActiveBusinessIDs", uint(7)).Return([]uint{42}, nil)

	p := runPrincipalMiddleware(t, source, "Bearer "+token)

	assert.False(t, p.IsAnonymous())
	assert.Equal(t, principal.RoleAdvisor, p.Role)
	assert.Equal(t, uint(7), p.UserID)
	assert.True(t, p.IsMemberOf(42))
	source.AssertExpectations(t)
}

func TestRequireAuthenticatedRejectsAnonymous(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(principal.ContextKey, principal.Anonymous())

	handler := RequireAuthenticated(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthenticatedPassesSignedInUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(principal.ContextKey, principal.Principal{Role: principal.RoleConsumer, UserID: 5})

	handler := RequireAuthenticated(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusOK, rec.Code)
}
