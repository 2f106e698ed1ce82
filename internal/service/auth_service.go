package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"savepantry/internal/entity"
	"savepantry/internal/repository"
	"savepantry/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthService struct {
	users         repository.UserRepository
	verifications repository.VerificationTokenRepository
	securityLogs  repository.SecurityLogRepository

	manager      *SessionManager
	mailer       Mailer
	passwordHash PasswordHasher
	clock        Clock
	config       AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	verifications repository.VerificationTokenRepository,
	securityLogs repository.SecurityLogRepository,
	manager *SessionManager,
	mailer Mailer,
	passwordHash PasswordHasher,
	clock Clock,
	config AuthConfig,
) *AuthService {
	return &AuthService{
		users:         users,
		verifications: verifications,
		securityLogs:  securityLogs,
		manager:       manager,
		mailer:        mailer,
		passwordHash:  passwordHash,
		clock:         clock,
		config:        config,
	}
}

func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*SignInResult, error) {
	if strings.TrimSpace(input.Username) == "" ||
		strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.Password) == "" ||
		strings.TrimSpace(input.DeviceID) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	existing, err := s.users.FindByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameAlreadyTaken
	}
	existing, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	language := entity.LanguageFR
	if input.Language == string(entity.LanguageEN) {
		language = entity.LanguageEN
	}
	user := &entity.User{
		Username:            input.Username,
		Email:               email,
		PasswordHash:        &hash,
		Role:                entity.UserRoleUser,
		BillingSubscriberID: utils.SubscriberID(email),
		PushToken:           input.PushToken,
		Language:            language,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.sendEmailVerification(ctx, user); err != nil {
			return nil, err
		}
	}

	raw, session, err := s.manager.CreateSession(ctx, user, input.DeviceID, input.DeviceName)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Token: raw, ExpiresAt: session.ExpiresAt, User: user, Session: session}, nil
}

func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	if strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.Password) == "" ||
		strings.TrimSpace(input.DeviceID) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		// Burn the same bcrypt cost as a real comparison so the response does
		// not leak whether the email exists.
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		_ = s.logSecurity(ctx, nil, input.IPAddress, entity.SignInFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.SignInFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}

	if input.PushToken != nil && (user.PushToken == nil || *user.PushToken != *input.PushToken) {
		if err := s.users.UpdatePushToken(ctx, user.ID, *input.PushToken); err != nil {
			return nil, err
		}
		user.PushToken = input.PushToken
	}

	if input.Force {
		if _, err := s.manager.RevokeAllForUser(ctx, user.ID, uuid.Nil); err != nil {
			return nil, err
		}
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.SignInForced, map[string]any{"device_id": input.DeviceID})
	} else {
		conflict, err := s.manager.EnforceSingleActiveDevice(ctx, user, input.DeviceID)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			return nil, ErrMultipleSession
		}
		// Session rotation: a repeat sign-in from the same installation
		// replaces its previous session instead of stacking a new one.
		if err := s.revokeDeviceSessions(ctx, user.ID, input.DeviceID); err != nil {
			return nil, err
		}
	}

	raw, session, err := s.manager.CreateSession(ctx, user, input.DeviceID, input.DeviceName)
	if err != nil {
		return nil, err
	}

	_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.SignInSuccess, map[string]any{"device_id": input.DeviceID})
	return &SignInResult{Token: raw, ExpiresAt: session.ExpiresAt, User: user, Session: session}, nil
}

func (s *AuthService) SignOut(ctx context.Context, sessionID uuid.UUID, userID *uuid.UUID, ipAddress *string) error {
	if err := s.manager.Revoke(ctx, sessionID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, userID, ipAddress, entity.SignOut, nil)
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		// Generic response either way; nothing to reveal.
		return nil
	}

	if err := s.verifications.InvalidateAllForUser(ctx, user.ID, entity.PasswordReset); err != nil {
		return err
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.PasswordReset, s.config.resetTokenTTL())
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
			return err
		}
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.PasswordResetAct, map[string]any{"stage": "requested"})
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}

	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.PasswordReset)
	if err != nil {
		return err
	}
	if verification == nil {
		return ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, verification.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.verifications.MarkUsed(ctx, verification.ID); err != nil {
		return err
	}

	_, _ = s.manager.RevokeAllForUser(ctx, user.ID, uuid.Nil)
	_ = s.logSecurity(ctx, &user.ID, nil, entity.PasswordResetAct, map[string]any{"stage": "completed"})
	return nil
}

func (s *AuthService) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.EmailVerifiedAt != nil {
		return nil
	}
	return s.sendEmailVerification(ctx, user)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidInput
	}
	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.EmailVerify)
	if err != nil {
		return err
	}
	if verification == nil {
		return ErrInvalidToken
	}
	if err := s.users.VerifyEmail(ctx, verification.UserID); err != nil {
		return err
	}
	return s.verifications.MarkUsed(ctx, verification.ID)
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) UpdateLanguage(ctx context.Context, userID uuid.UUID, language string) error {
	switch entity.Language(language) {
	case entity.LanguageFR, entity.LanguageEN:
	default:
		return ErrInvalidInput
	}
	return s.users.UpdateLanguage(ctx, userID, entity.Language(language))
}

func (s *AuthService) UpdatePushToken(ctx context.Context, userID uuid.UUID, pushToken string) error {
	if strings.TrimSpace(pushToken) == "" {
		return ErrInvalidInput
	}
	return s.users.UpdatePushToken(ctx, userID, pushToken)
}

func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.manager.RevokeAllForUser(ctx, userID, uuid.Nil); err != nil {
		return err
	}
	return s.users.Delete(ctx, userID)
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	count, err := s.manager.RevokeAllForUser(ctx, userID, uuid.Nil)
	if err != nil {
		return err
	}
	if count > 0 {
		_ = s.logSecurity(ctx, &userID, nil, entity.SessionRevoked, map[string]any{"count": count})
	}
	return nil
}

func (s *AuthService) ListSecurityLogs(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityLog, error) {
	if s.securityLogs == nil {
		return nil, nil
	}
	return s.securityLogs.ListByUser(ctx, userID, limit)
}

func (s *AuthService) revokeDeviceSessions(ctx context.Context, userID uuid.UUID, deviceID string) error {
	active, err := s.manager.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range active {
		if active[i].DeviceID != deviceID {
			continue
		}
		if err := s.manager.Revoke(ctx, active[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) sendEmailVerification(ctx context.Context, user *entity.User) error {
	if s.mailer == nil {
		return nil
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.EmailVerify, s.config.verificationTokenTTL())
	if err != nil {
		return err
	}
	return s.mailer.SendVerificationEmail(ctx, user.Email, token)
}

func (s *AuthService) createVerificationToken(
	ctx context.Context,
	userID uuid.UUID,
	typeValue entity.VerificationType,
	ttl time.Duration,
) (string, error) {
	rawToken, err := utils.GenerateRandomToken(32)
	if err != nil {
		return "", err
	}
	verification := &entity.VerificationToken{
		UserID:    userID,
		TokenHash: utils.HashToken(rawToken),
		Type:      typeValue,
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	if err := s.verifications.Create(ctx, verification); err != nil {
		return "", err
	}
	return rawToken, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}
	return s.securityLogs.Log(ctx, &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	})
}
