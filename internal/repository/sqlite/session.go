package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// Upsert creates or refreshes the session record for a session key. A
// re-login on the same key keeps the original created_at but adopts the
// new client address, user agent and expiry.
func (db *DB) Upsert(ctx context.Context, session *model.UserSession) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_sessions
			(session_key, user_id, ip_address, user_agent, last_activity, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET
			user_id = excluded.user_id,
			ip_address = excluded.ip_address,
			user_agent = excluded.user_agent,
			last_activity = excluded.last_activity,
			expires_at = excluded.expires_at`,
		session.SessionKey,
		session.UserID,
		session.IPAddress,
		session.UserAgent,
		session.LastActivity,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting session for user %s: %w", session.UserID, err)
	}
	return nil
}

// Touch refreshes a session's last-activity timestamp. Touching a key with
// no session row is a no-op.
func (db *DB) Touch(ctx context.Context, key string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE user_sessions SET last_activity = ? WHERE session_key = ?`, at, key)
	if err != nil {
		return fmt.Errorf("sqlite: touching session: %w", err)
	}
	return nil
}

// Delete removes the session record for a session key.
func (db *DB) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE session_key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpired purges sessions whose hard expiry has passed. Called
// opportunistically on each login.
func (db *DB) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return fmt.Errorf("sqlite: purging expired sessions: %w", err)
	}
	return nil
}

// ActiveUsers returns the distinct users with a live session whose last
// activity is at or after the cutoff.
func (db *DB) ActiveUsers(ctx context.Context, since time.Time) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT `+prefixedUserColumns("u")+`
		 FROM users u
		 JOIN user_sessions s ON s.user_id = u.id
		 WHERE s.last_activity >= ? AND s.expires_at > ?
		 ORDER BY u.username`,
		since, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying active users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning active user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating active users: %w", err)
	}

	return users, nil
}
