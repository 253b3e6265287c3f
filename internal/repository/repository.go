// Package repository declares the storage interfaces the services depend
// on. The sqlite subpackage is the only implementation; tests use fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/guitar-games/internal/model"
)

// UserRepository stores user accounts. Emails are unique (lowercased by the
// service before they reach here); users are never deleted.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile persists the refreshable profile fields (names, photo,
	// provider) after a third-party login.
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// TokenRepository stores one opaque bearer token per user.
type TokenRepository interface {
	// GetOrCreate returns the user's existing token key, creating one with
	// the supplied key only if none exists. Re-login never rotates keys.
	GetOrCreate(ctx context.Context, userID, key string) (string, error)
	// GetUserID resolves a presented key to its owner.
	GetUserID(ctx context.Context, key string) (string, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// SessionRepository stores per-client session records keyed by the bearer
// token key the client presents.
type SessionRepository interface {
	Upsert(ctx context.Context, session *model.UserSession) error
	Touch(ctx context.Context, key string, at time.Time) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) error
	// ActiveUsers returns the distinct users owning a non-expired session
	// with activity at or after the cutoff.
	ActiveUsers(ctx context.Context, since time.Time) ([]model.User, error)
}

// ScoreRepository stores best scores, at most one row per
// (user, game type, config) tuple.
type ScoreRepository interface {
	// GetBest returns the persisted row for the exact tuple, with the
	// username filled in. Returns apperror.ErrNotFound when absent.
	GetBest(ctx context.Context, userID, gameType string, cfg model.GameConfig) (*model.GameScore, error)
	// SubmitBest atomically inserts the score or raises the stored one if
	// the submission is strictly greater. It returns the persisted row
	// after the operation and whether a new row was created.
	SubmitBest(ctx context.Context, score *model.GameScore) (*model.GameScore, bool, error)
	// Leaderboard returns up to limit rows for the exact config, ordered
	// by score descending then most recent first.
	Leaderboard(ctx context.Context, gameType string, cfg model.GameConfig, limit int) ([]model.GameScore, error)
}
