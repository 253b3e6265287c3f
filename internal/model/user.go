// Package model defines the data structures used throughout the application.
package model

import "time"

// Identity providers a User account can originate from. Facebook is part of
// the provider choice list but no Facebook login endpoint is exposed yet.
const (
	ProviderEmail    = "email"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User represents a registered player account.
//
// Email is the unique external identifier and is always stored lowercased.
// Username is derived from the email's local part at registration and is
// NOT unique — two users at different domains can share one.
//
// PasswordHash is empty for accounts created through Google sign-in; those
// users can never log in with a password. The json:"-" tag keeps the hash
// out of every API response.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PhotoURL     string     `json:"photo_url"`
	Provider     string     `json:"provider"`
	IsStaff      bool       `json:"is_staff"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	DateJoined   time.Time  `json:"date_joined"`
}
