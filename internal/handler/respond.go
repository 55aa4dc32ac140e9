package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"trust-service/internal/authz"
	"trust-service/internal/badge"
	"trust-service/internal/policy"
)

// enforcer is the single enforcement point every handler routes through.
var enforcer *authz.Enforcer

// Init wires the handlers to the enforcement point. Called once from main.
func Init(e *authz.Enforcer) {
	enforcer = e
}

// denialStatus maps a denial onto the HTTP response the initiating
// principal sees. Cross-tenant denials and missing rows both surface as
// 404 so the existence of another tenant's data never leaks.
func denialStatus(reason string, err error) (int, string) {
	switch {
	case errors.Is(err, policy.ErrTenantIsolation):
		return http.StatusNotFound, "not found"
	case errors.Is(err, authz.ErrNotFound):
		return http.StatusNotFound, "not found"
	case reason == "not found":
		return http.StatusNotFound, "not found"
	case errors.Is(err, policy.ErrRoleEscalation):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusForbidden, "forbidden"
	}
}

// respondDenied writes the structured denial for a policy decision.
func respondDenied(c echo.Context, decision policy.Decision) error {
	status, message := denialStatus(decision.Reason, decision.Err)
	return c.JSON(status, echo.Map{"error": message})
}

// respondDeniedErr writes the denial for an error returned by the
// enforcement point's mutation paths.
func respondDeniedErr(c echo.Context, err error) error {
	var denied *authz.DeniedError
	if errors.As(err, &denied) {
		return respondDenied(c, denied.Decision)
	}
	if errors.Is(err, authz.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

func isDenied(err error) bool {
	var denied *authz.DeniedError
	return errors.As(err, &denied) || errors.Is(err, authz.ErrNotFound)
}

func isGateViolation(err error) bool {
	return errors.Is(err, badge.ErrGateViolation)
}

func isBadValue(err error) bool {
	return errors.Is(err, badge.ErrUnknownField) || errors.Is(err, badge.ErrUnknownValue)
}
