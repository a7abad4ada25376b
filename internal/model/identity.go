package model

import "time"

// UserType distinguishes student vs admin users.
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeAdmin   UserType = "admin"
)

// Identity is the locally cached view of who is signed in. It is a UX hint
// only; the backend enforces access on every request.
type Identity struct {
	Present       bool       `json:"present"`
	User          string     `json:"user,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	UserType      UserType   `json:"user_type,omitempty"`
	Roles         []string   `json:"roles,omitempty"`
	Permissions   []string   `json:"permissions,omitempty"`
	Token         string     `json:"-"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RememberEmail string     `json:"remember_email,omitempty"`
}

// Expired reports whether the cached token carries an expiry in the past.
func (i Identity) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// HasRole reports whether role is in the cached role list.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}
