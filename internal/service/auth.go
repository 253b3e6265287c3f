package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/auth"
	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

// invalidCredentials is the single message for every login failure, so a
// response never reveals whether an email is registered.
const invalidCredentials = "Invalid credentials"

const minPasswordLength = 8

// AuthService owns registration, login (password and Google credential),
// logout, token resolution and the admin active-users view.
//
//	AuthHandler (HTTP) → AuthService → UserRepository / TokenRepository
//	                                 ↘ SessionTracker (explicit side effects)
//	                                 ↘ GoogleVerifier (external claims)
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	sessions  *SessionTracker
	passwords *auth.PasswordService
	google    auth.GoogleVerifier
	// googleClientID is the audience every accepted credential must carry.
	googleClientID string
	logger         *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	sessions *SessionTracker,
	passwords *auth.PasswordService,
	google auth.GoogleVerifier,
	googleClientID string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:          users,
		tokens:         tokens,
		sessions:       sessions,
		passwords:      passwords,
		google:         google,
		googleClientID: googleClientID,
		logger:         logger,
	}
}

// AuthResult bundles the authenticated user with their bearer token so the
// handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the payload for password registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an email/password account and logs it in.
//
// The email is lowercased before any lookup or insert. A taken email and
// a short password both fail with a validation error; the duplicate-email
// check races with concurrent registrations, so the store's unique
// constraint backstops it and its conflict is reported identically.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters long")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.ValidationFailed("email", "user with this email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     usernameFromEmail(email),
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Provider:     model.ProviderEmail,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", "user with this email already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("provider", user.Provider),
	)

	return s.finishLogin(ctx, user, client)
}

// Login authenticates an email/password pair. Unknown email, wrong
// password and password-less (Google-only) accounts all fail with the same
// generic unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if user.PasswordHash == "" || s.passwords.Verify(user.PasswordHash, password) != nil {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	return s.finishLogin(ctx, user, client)
}

// GoogleLogin authenticates a Google sign-in credential.
//
// The verifier guarantees signature, expiry and issuer; this method
// additionally requires the audience to be our client ID, the email claim
// to be present, and the email to be verified by Google. On success the
// account is upserted by email: an existing user's name, photo and
// provider are refreshed, a new user is created without a password.
func (s *AuthService) GoogleLogin(ctx context.Context, credential string, client ClientInfo) (*AuthResult, error) {
	claims, err := s.google.Verify(ctx, credential)
	if err != nil {
		s.logger.Warn("google credential rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("Invalid Google credential")
	}

	if claims.Audience != s.googleClientID {
		return nil, apperror.Unauthorized("Credential issued for a different application")
	}
	if claims.Email == "" {
		return nil, apperror.Unauthorized("Email not found in credential")
	}
	if !claims.EmailVerified {
		return nil, apperror.Unauthorized("Email not verified by Google")
	}

	email, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid email in credential")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		user.FirstName = claims.GivenName
		user.LastName = claims.FamilyName
		user.PhotoURL = claims.Picture
		user.Provider = model.ProviderGoogle
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: refreshing profile for %s: %w", user.ID, err)
		}

	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Username:  usernameFromEmail(email),
			Email:     email,
			FirstName: claims.GivenName,
			LastName:  claims.FamilyName,
			PhotoURL:  claims.Picture,
			Provider:  model.ProviderGoogle,
			IsActive:  true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating Google user %s: %w", email, err)
		}
		s.logger.Info("user registered",
			slog.String("userID", user.ID),
			slog.String("provider", user.Provider),
		)

	default:
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	return s.finishLogin(ctx, user, client)
}

// Logout revokes the user's bearer token and drops the session record.
// Anonymous calls (already-revoked token, no token) are a successful no-op.
func (s *AuthService) Logout(ctx context.Context, user *model.User, sessionKey string) error {
	if user == nil {
		return nil
	}

	if err := s.tokens.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("service/auth: revoking token for %s: %w", user.ID, err)
	}
	if sessionKey != "" {
		s.sessions.Ended(ctx, sessionKey)
	}

	s.logger.Info("user logged out", slog.String("userID", user.ID))
	return nil
}

// ResolveToken maps a presented bearer token key to its owner. Implements
// auth.TokenResolver for the middleware. Unknown keys and deactivated
// accounts resolve to an unauthorized error.
func (s *AuthService) ResolveToken(ctx context.Context, key string) (*model.User, error) {
	userID, err := s.tokens.GetUserID(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid token")
		}
		return nil, fmt.Errorf("service/auth: resolving token: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching token owner %s: %w", userID, err)
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("account disabled")
	}

	return user, nil
}

// ActiveUsers returns the users seen within the tracker's active window.
// Restricted to staff callers.
func (s *AuthService) ActiveUsers(ctx context.Context, caller *model.User) ([]model.User, error) {
	if caller == nil || !caller.IsStaff {
		return nil, apperror.Forbidden("admin access required")
	}
	return s.sessions.ActiveUsers(ctx)
}

// finishLogin is the shared tail of every successful authentication:
// issue or reuse the bearer token, stamp last_login, and record the
// session before the result is returned.
func (s *AuthService) finishLogin(ctx context.Context, user *model.User, client ClientInfo) (*AuthResult, error) {
	key, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID, key)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/auth: stamping last_login for %s: %w", user.ID, err)
	}
	user.LastLogin = &now

	if err := s.sessions.Started(ctx, user.ID, token, client); err != nil {
		return nil, fmt.Errorf("service/auth: recording session for %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", user.Provider),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// normalizeEmail lowercases and trims the address and applies the minimal
// shape check the API promises a field-level error for.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return "", apperror.ValidationFailed("email", "enter a valid email address")
	}
	return email, nil
}

// usernameFromEmail derives the username from the email's local part.
func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
