// Package sqlite implements the repository interfaces on SQLite via
// modernc.org/sqlite (pure Go, no CGo), using database/sql.
//
// The store is the sole arbiter of consistency: the unique indexes below —
// users.email, auth_tokens per-user and per-key, and the game_scores
// config tuple — are what make concurrent registrations, logins and score
// submissions safe without any application-level locking.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements all four repository
// interfaces.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests) and runs the
// migrations. WAL mode keeps reads concurrent with writes under load.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time; a second pooled connection would
	// also see a different database entirely for ":memory:".
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			photo_url     TEXT NOT NULL DEFAULT '',
			provider      TEXT NOT NULL DEFAULT 'email',
			is_staff      INTEGER NOT NULL DEFAULT 0,
			is_active     INTEGER NOT NULL DEFAULT 1,
			last_login    DATETIME,
			date_joined   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// One token per user, one user per key. The key is the primary lookup
	// on every authenticated request.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS auth_tokens (
			key        TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL UNIQUE REFERENCES users(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating auth_tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_sessions (
			session_key   TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			ip_address    TEXT NOT NULL DEFAULT '',
			user_agent    TEXT NOT NULL DEFAULT '',
			last_activity DATETIME NOT NULL,
			created_at    DATETIME NOT NULL,
			expires_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_user_sessions_last_activity
			ON user_sessions(last_activity);
	`)
	if err != nil {
		return fmt.Errorf("creating user_sessions table: %w", err)
	}

	// The unique index is the upsert-with-max anchor: ON CONFLICT on this
	// tuple is what keeps concurrent submissions from creating duplicates.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS game_scores (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			game_type     TEXT NOT NULL,
			score         INTEGER NOT NULL,
			date_achieved DATETIME NOT NULL,
			fret_length   INTEGER NOT NULL,
			start_string  INTEGER NOT NULL,
			end_string    INTEGER NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_game_scores_config
			ON game_scores(user_id, game_type, fret_length, start_string, end_string);
		CREATE INDEX IF NOT EXISTS idx_game_scores_leaderboard
			ON game_scores(game_type, fret_length, start_string, end_string, score);
	`)
	if err != nil {
		return fmt.Errorf("creating game_scores table: %w", err)
	}

	return nil
}
