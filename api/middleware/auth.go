package middleware

import (
	"net/http"
	"strings"

	"savepantry/internal/entity"
	"savepantry/internal/repository"
	"savepantry/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Machine-readable 401 codes. Clients treat session_revoked_or_expired as
// "signed out elsewhere" and must not retry with the same token.
const (
	CodeNoToken               = "no_token"
	CodeSessionRevokedExpired = "session_revoked_or_expired"
	CodeSessionExpired        = "session_expired"
	CodeInvalidToken          = "invalid_token"
	CodeUserNotFound          = "user_not_found"
)

// AuthGate resolves a bearer token to an identity: fingerprint lookup, seal
// verification, sliding renewal, then the non-premium multi-session eviction.
type AuthGate struct {
	Sessions repository.SessionRepository
	Users    repository.UserRepository
	Logs     repository.SecurityLogRepository
	Codec    service.TokenCodec
	Manager  *service.SessionManager
	Clock    service.Clock
	Logger   logrus.FieldLogger
}

func (g AuthGate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		raw := extractBearerToken(c.Request())
		if raw == "" {
			return unauthenticated(c, CodeNoToken, "no token")
		}

		session, err := g.Sessions.FindActiveByFingerprint(ctx, g.Codec.Fingerprint(raw))
		if err != nil {
			return err
		}
		if session == nil {
			return unauthenticated(c, CodeSessionRevokedExpired, "invalid or expired session")
		}

		// The store filtered on expiry, but the session may have lapsed between
		// lookup and here; delete it lazily rather than waiting for the sweep.
		if !session.ExpiresAt.After(g.Clock.Now()) {
			_ = g.Manager.DeleteExpired(ctx, session.ID)
			return unauthenticated(c, CodeSessionExpired, "session expired")
		}

		// A fingerprint hit is only a candidate: the bcrypt seal decides. A
		// mismatch here means a collision or tampering and is logged as an
		// integrity anomaly.
		if !g.Codec.Verify(raw, session.TokenHash) {
			g.logAnomaly(c, session)
			return unauthenticated(c, CodeInvalidToken, "invalid token")
		}

		user, err := g.Users.FindByID(ctx, session.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return unauthenticated(c, CodeUserNotFound, "user not found")
		}

		// Renew before evaluating the device cap so a just-renewed session is
		// never the one evicted by its own request.
		if err := g.Manager.RenewIfNearExpiry(ctx, session); err != nil {
			g.Logger.WithError(err).Warn("session renewal failed")
		}
		if evicted, err := g.Manager.EvictSurplus(ctx, user, session.ID); err != nil {
			g.Logger.WithError(err).Warn("session eviction failed")
		} else if evicted > 0 {
			g.Logger.WithFields(logrus.Fields{
				"user_id": user.ID,
				"evicted": evicted,
			}).Info("surplus sessions evicted")
			g.logEviction(c, user.ID)
		}

		SetIdentity(c, Identity{
			UserID:    user.ID,
			Username:  user.Username,
			Role:      user.Role,
			Premium:   user.IsPremium,
			SessionID: session.ID,
		})
		return next(c)
	}
}

func (g AuthGate) logEviction(c echo.Context, userID uuid.UUID) {
	if g.Logs == nil {
		return
	}
	ip := c.RealIP()
	err := g.Logs.Log(c.Request().Context(), &entity.SecurityLog{
		UserID:    &userID,
		IPAddress: &ip,
		Action:    entity.SessionEvicted,
	})
	if err != nil {
		g.Logger.WithError(err).Warn("eviction log failed")
	}
}

func (g AuthGate) logAnomaly(c echo.Context, session *entity.Session) {
	if g.Logs == nil {
		return
	}
	ip := c.RealIP()
	err := g.Logs.Log(c.Request().Context(), &entity.SecurityLog{
		UserID:    &session.UserID,
		IPAddress: &ip,
		Action:    entity.TokenAnomaly,
	})
	if err != nil {
		g.Logger.WithError(err).Warn("anomaly log failed")
	}
}

func unauthenticated(c echo.Context, code string, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": message,
		"code":  code,
	})
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
