package principal

import "github.com/labstack/echo/v4"

// ContextKey is where the auth middleware stores the resolved principal.
const ContextKey = "principal"

// FromEcho retrieves the resolved principal from the Echo context,
// falling back to anonymous when none was set.
func FromEcho(c echo.Context) Principal {
	p, ok := c.Get(ContextKey).(Principal)
	if !ok {
		return Anonymous()
	}
	return p
}
