package routes

import (
	"time"

	"savepantry/api/handler"
	"savepantry/api/middleware"
	"savepantry/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo      *echo.Echo
	Auth      *handler.AuthHandler
	Gate      middleware.AuthGate
	AuthRate  *middleware.RateLimiter
	LoginRate *middleware.RateLimiter
}

func NewRouter(e *echo.Echo, authHandler *handler.AuthHandler, gate middleware.AuthGate) *Router {
	return &Router{
		Echo:      e,
		Auth:      authHandler,
		Gate:      gate,
		AuthRate:  middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate: middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/signup", r.Auth.SignUp, r.AuthRate.Middleware())
	e.POST("/auth/signin", r.Auth.SignIn, r.LoginRate.Middleware())
	e.POST("/auth/logout", r.Auth.SignOut, r.Gate.RequireAuth)
	e.POST("/auth/sessions/renew", r.Auth.RenewSession, r.Gate.RequireAuth)
	e.GET("/auth/validate", r.Auth.ValidateToken, r.Gate.RequireAuth)
	e.POST("/auth/premium/sync", r.Auth.SyncPremium, r.Gate.RequireAuth)
	e.POST("/auth/password/forgot", r.Auth.PasswordForgot, r.LoginRate.Middleware())
	e.POST("/auth/password/reset", r.Auth.PasswordReset, r.AuthRate.Middleware())
	e.POST("/auth/verify-email/request", r.Auth.RequestEmailVerification, r.Gate.RequireAuth)
	e.POST("/auth/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())

	e.GET("/me", r.Auth.Me, r.Gate.RequireAuth)
	e.PUT("/me/language", r.Auth.UpdateLanguage, r.Gate.RequireAuth)
	e.PUT("/me/push-token", r.Auth.UpdatePushToken, r.Gate.RequireAuth)
	e.DELETE("/me", r.Auth.DeleteAccount, r.Gate.RequireAuth)

	e.GET("/admin/users", r.Auth.AdminListUsers, r.Gate.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
	e.POST("/admin/users/:id/revoke-sessions", r.Auth.AdminRevokeUserSessions, r.Gate.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
	e.GET("/admin/users/:id/security-logs", r.Auth.AdminListSecurityLogs, r.Gate.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
}
