package models

import "time"

// RefreshToken is one login session. The row is the only source of truth
// for whether the session is alive: once ExpiresAt is in the past the token
// can never be used again.
type RefreshToken struct {
	ID        string
	SessionID string
	Token     string
	Subject   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
