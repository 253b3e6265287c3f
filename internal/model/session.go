package model

import "time"

// UserSession records one authenticated client presence. The session key is
// the bearer token key the client presents, so login upserts the record,
// the auth middleware refreshes LastActivity on every request, and logout
// deletes it.
//
// A user counts as "online" while some session of theirs has LastActivity
// inside the configured active window (15 minutes by default). ExpiresAt is
// a hard horizon after which the record is purged regardless of activity.
type UserSession struct {
	SessionKey   string    `json:"-"`
	UserID       string    `json:"user_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"-"`
}
