package models

import "time"

// User is an account record. PasswordHash is empty for users that have no
// local password yet (for example a pending invite). VerifiedAt is nil until
// the email address has been confirmed.
type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	VerifiedAt            *time.Time
	HasActiveSubscription bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasPassword reports whether a local password is configured.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool {
	return u.VerifiedAt != nil
}
