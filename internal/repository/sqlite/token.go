package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

// GetOrCreate returns the user's bearer token key, inserting the supplied
// key only when the user has none. The UNIQUE constraint on user_id plus
// ON CONFLICT DO NOTHING makes two concurrent first logins converge on a
// single key: the loser's insert is a no-op and the follow-up SELECT reads
// whichever key won.
func (db *DB) GetOrCreate(ctx context.Context, userID, key string) (string, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO auth_tokens (key, user_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		key, userID,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: inserting token for user %s: %w", userID, err)
	}

	var stored string
	err = db.conn.QueryRowContext(ctx,
		`SELECT key FROM auth_tokens WHERE user_id = ?`, userID,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("sqlite: reading token for user %s: %w", userID, err)
	}

	return stored, nil
}

// GetUserID resolves a token key to its owning user.
// Returns apperror.ErrNotFound for unknown (or revoked) keys.
func (db *DB) GetUserID(ctx context.Context, key string) (string, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id FROM auth_tokens WHERE key = ?`, key,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("token", key)
		}
		return "", fmt.Errorf("sqlite: resolving token: %w", err)
	}
	return userID, nil
}

// DeleteByUser revokes the user's token. Deleting a user with no token is
// not an error — logout stays idempotent.
func (db *DB) DeleteByUser(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting token for user %s: %w", userID, err)
	}
	return nil
}
