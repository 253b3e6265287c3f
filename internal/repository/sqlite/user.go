package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, first_name, last_name,
	photo_url, provider, is_staff, is_active, last_login, date_joined`

// prefixedUserColumns qualifies every user column with a table alias, for
// queries that join users against other tables.
func prefixedUserColumns(alias string) string {
	parts := strings.Split(userColumns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// Create inserts a new user, generating its ID and join date in place.
// A duplicate email surfaces as apperror.ErrConflict — the service decides
// how to present that (registration maps it to the same validation error
// as its pre-check, so the race loser sees an identical response).
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.DateJoined = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.Provider,
		user.IsStaff,
		user.IsActive,
		user.LastLogin,
		user.DateJoined,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Callers normalize to lowercase
// before the lookup; the column stores lowercase only.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return user, nil
}

// UpdateProfile overwrites the fields a third-party login refreshes.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, photo_url = ?, provider = ?
		 WHERE id = ?`,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.Provider,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login.
func (db *DB) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating last_login for user %s: %w", id, err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var lastLogin sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.PhotoURL,
		&u.Provider,
		&u.IsStaff,
		&u.IsActive,
		&lastLogin,
		&u.DateJoined,
	)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}
