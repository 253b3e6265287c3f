// Package service holds the business logic between the HTTP handlers and
// the repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

// ClientInfo is what the transport layer knows about the caller, captured
// by handlers and threaded into login events.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// SessionTracker maintains the session records behind the active-users
// view. The auth service calls it explicitly after each login and logout —
// there is no event bus, so the ordering guarantee (session record exists
// before the login response goes out) is visible in the call sites.
type SessionTracker struct {
	sessions     repository.SessionRepository
	ttl          time.Duration
	activeWindow time.Duration
	logger       *slog.Logger
}

func NewSessionTracker(
	sessions repository.SessionRepository,
	ttl time.Duration,
	activeWindow time.Duration,
	logger *slog.Logger,
) *SessionTracker {
	return &SessionTracker{
		sessions:     sessions,
		ttl:          ttl,
		activeWindow: activeWindow,
		logger:       logger,
	}
}

// Started records (or refreshes) the session for a login event and
// opportunistically purges expired session records. The purge is
// best-effort: a failure there must not fail the login.
func (t *SessionTracker) Started(ctx context.Context, userID, sessionKey string, client ClientInfo) error {
	now := time.Now().UTC()

	err := t.sessions.Upsert(ctx, &model.UserSession{
		SessionKey:   sessionKey,
		UserID:       userID,
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
		LastActivity: now,
		CreatedAt:    now,
		ExpiresAt:    now.Add(t.ttl),
	})
	if err != nil {
		return err
	}

	if err := t.sessions.DeleteExpired(ctx, now); err != nil {
		t.logger.Warn("expired session purge failed", slog.String("error", err.Error()))
	}

	return nil
}

// Ended removes the session record for a logout event. Best-effort —
// logout succeeds regardless.
func (t *SessionTracker) Ended(ctx context.Context, sessionKey string) {
	if err := t.sessions.Delete(ctx, sessionKey); err != nil {
		t.logger.Warn("session delete failed", slog.String("error", err.Error()))
	}
}

// Touch refreshes the session's last-activity timestamp. Called by the
// auth middleware on every authenticated request; implements
// auth.SessionToucher. Failures only cost activity freshness, so they are
// logged and swallowed.
func (t *SessionTracker) Touch(ctx context.Context, sessionKey string) {
	if err := t.sessions.Touch(ctx, sessionKey, time.Now().UTC()); err != nil {
		t.logger.Warn("session touch failed", slog.String("error", err.Error()))
	}
}

// ActiveUsers returns the distinct users with session activity inside the
// configured window (15 minutes unless overridden).
func (t *SessionTracker) ActiveUsers(ctx context.Context) ([]model.User, error) {
	return t.sessions.ActiveUsers(ctx, time.Now().UTC().Add(-t.activeWindow))
}
