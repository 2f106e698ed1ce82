package dto

import (
	"encoding/json"
	"time"

	"savepantry/internal/entity"
)

type SignUpRequest struct {
	Username   string  `json:"username" validate:"required,min=3,max=100"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=8"`
	DeviceID   string  `json:"device_id" validate:"required"`
	DeviceName string  `json:"device_name" validate:"omitempty"`
	PushToken  *string `json:"push_token" validate:"omitempty"`
	Language   string  `json:"language" validate:"omitempty,oneof=fr en"`
}

type SignInRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required"`
	DeviceID   string  `json:"device_id" validate:"required"`
	DeviceName string  `json:"device_name" validate:"omitempty"`
	PushToken  *string `json:"push_token" validate:"omitempty"`
	Force      bool    `json:"force"`
}

type SignInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// SessionConflictResponse is the 403 policy rejection returned when the
// non-premium device cap blocks a sign-in. force_available invites the client
// to retry with force=true; upgrading removes the cap entirely.
type SessionConflictResponse struct {
	Reason         string `json:"reason"`
	Message        string `json:"message"`
	ForceAvailable bool   `json:"force_available"`
}

type RenewResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type IdentityResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Premium   bool   `json:"premium"`
	SessionID string `json:"session_id"`
}

type PremiumSyncResponse struct {
	Premium bool `json:"premium"`
	Updated bool `json:"updated"`
}

type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type UpdateLanguageRequest struct {
	Language string `json:"language" validate:"required,oneof=fr en"`
}

type UpdatePushTokenRequest struct {
	PushToken string `json:"push_token" validate:"required"`
}

type UserResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Premium         bool       `json:"premium"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	Language        string     `json:"language"`
	CreatedAt       time.Time  `json:"created_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:              user.ID.String(),
		Username:        user.Username,
		Email:           user.Email,
		Role:            string(user.Role),
		Premium:         user.IsPremium,
		EmailVerifiedAt: user.EmailVerifiedAt,
		Language:        string(user.Language),
		CreatedAt:       user.CreatedAt,
	}
}

type SecurityLogResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	IPAddress *string         `json:"ip_address,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func SecurityLogResponsesFromEntities(logs []entity.SecurityLog) []SecurityLogResponse {
	responses := make([]SecurityLogResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, SecurityLogResponse{
			ID:        logs[i].ID.String(),
			Action:    string(logs[i].Action),
			IPAddress: logs[i].IPAddress,
			Metadata:  json.RawMessage(logs[i].Metadata),
			CreatedAt: logs[i].CreatedAt,
		})
	}
	return responses
}

func UserResponsesFromEntities(users []entity.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, UserResponseFromEntity(&users[i]))
	}
	return responses
}
