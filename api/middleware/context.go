package middleware

import (
	"savepantry/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const contextIdentityKey = "auth_identity"

// Identity is the typed contract handed to downstream handlers once the gate
// has resolved a request: who the user is, whether they are premium, and which
// session authenticated them.
type Identity struct {
	UserID    uuid.UUID
	Username  string
	Role      entity.UserRole
	Premium   bool
	SessionID uuid.UUID
}

func SetIdentity(c echo.Context, identity Identity) {
	c.Set(contextIdentityKey, identity)
}

func IdentityFromContext(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(contextIdentityKey).(Identity)
	return identity, ok
}
