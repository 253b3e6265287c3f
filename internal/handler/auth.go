// Package handler maps HTTP requests onto the services and serializes the
// results as JSON. Handlers never touch repositories directly.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/auth"
	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/service"
)

// AuthService is the slice of service.AuthService the handlers call.
// An interface here keeps the handlers testable with a fake.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput, client service.ClientInfo) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string, client service.ClientInfo) (*service.AuthResult, error)
	GoogleLogin(ctx context.Context, credential string, client service.ClientInfo) (*service.AuthResult, error)
	Logout(ctx context.Context, user *model.User, sessionKey string) error
	ActiveUsers(ctx context.Context, caller *model.User) ([]model.User, error)
}

type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

// authResponse is the body of every successful authentication.
type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// HandleRegister creates an email/password account.
//
// HTTP: POST /api/auth/register → 201 {token, user}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

// HandleLogin authenticates an email/password pair.
//
// HTTP: POST /api/auth/login → 200 {token, user} | 401
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleGoogle authenticates a Google sign-in credential posted by the
// browser.
//
// HTTP: POST /api/auth/google → 200 {token, user} | 401
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}
	if req.Credential == "" {
		writeError(w, apperror.ValidationFailed("credential", "credential is required"))
		return
	}

	result, err := h.auth.GoogleLogin(r.Context(), req.Credential, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleLogout revokes the caller's token. Runs behind OptionalAuth so a
// request with a missing or already-revoked token still gets 200.
//
// HTTP: POST /api/auth/logout → 200
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	key, _ := auth.TokenKeyFromContext(r.Context())

	if err := h.auth.Logout(r.Context(), user, key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/user → 200 user | 401
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// RequireAuth guards this route; reaching here anonymously is a bug.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleActiveUsers returns the users active within the tracker's window.
// Staff only — the service enforces it.
//
// HTTP: GET /api/auth/active-users → 200 {active_users_count, users} | 403
func (h *AuthHandler) HandleActiveUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserFromContext(r.Context())

	users, err := h.auth.ActiveUsers(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_users_count": len(users),
		"users":              users,
	})
}

// clientInfo captures what the session tracker records about the caller.
// chi's RealIP middleware has already unwrapped proxy headers into
// RemoteAddr; the port is stripped when present.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.ClientInfo{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
