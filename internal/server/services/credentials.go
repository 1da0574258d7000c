package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
)

const (
	loginFailedMessage  = "incorrect username or password"
	resetLinkMessage    = "Your reset password link is either invalid or expired"
	verifyLinkMessage   = "Your verify user link is either invalid or expired"
	invalidResetMessage = "Invalid reset token"
)

// CredentialVerifier implements login, password reset and email
// verification. Login failures never reveal whether the account exists.
type CredentialVerifier struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *TokenIssuer
	hasher      *cryptox.PasswordHasher
	now         func() time.Time
}

func NewCredentialVerifier(db *sql.DB, m repomanager.RepositoryManager, issuer *TokenIssuer, hasher *cryptox.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{db: db, repomanager: m, issuer: issuer, hasher: hasher, now: time.Now}
}

func (v *CredentialVerifier) VerifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthenticated(loginFailedMessage, "Could not find a user for the given username")
	}
	if !user.HasPassword() {
		return nil, apperr.Unauthenticated(loginFailedMessage, "The user does not have a configured password")
	}
	if !v.hasher.Verify(user.PasswordHash, password) {
		return nil, apperr.Unauthenticated(loginFailedMessage, "The password was incorrect")
	}
	return user, nil
}

func (v *CredentialVerifier) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	user, err := v.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperr.NoSuchUser("The user does not exist", "Could not find a user when creating password reset token")
	}
	return v.issuer.IssuePasswordResetToken(user)
}

// ResetPassword consumes a reset token. The token is decoded first to find
// the subject, whose current hash is then the verification secret.
func (v *CredentialVerifier) ResetPassword(ctx context.Context, password, resetToken string) error {
	claims, err := v.issuer.Decode(resetToken)
	if err != nil {
		return apperr.Invalid(invalidResetMessage, "The token could not be decoded").WithCause(err)
	}
	if claims.Subject == "" {
		return apperr.Invalid(invalidResetMessage, "The token did not include a subject")
	}

	user, err := v.findByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NoSuchUser(invalidResetMessage, "A user with the supplied reset password token subject does not exist")
	}
	if !user.HasPassword() {
		return apperr.Missing("Invalid user", "The subject of the reset password request does not have a password to reset")
	}

	if _, err := v.issuer.Verify(resetToken, []byte(user.PasswordHash)); err != nil {
		return apperr.Unauthorized(resetLinkMessage, err.Error()).WithCause(err)
	}

	hash, err := v.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, cryptox.ErrEmptyPassword) {
			return apperr.Invalid("The password must not be empty", "Empty password on reset")
		}
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return apperr.Invalid("The password must be at most 72 bytes long", "Password over bcrypt limit on reset")
		}
		return fmt.Errorf("hash password: %w", err)
	}
	if err := v.repomanager.Users(v.db).UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

// MarkUserAsVerified consumes an email verification token. Verifying an
// already verified user is a no-op.
func (v *CredentialVerifier) MarkUserAsVerified(ctx context.Context, token string) error {
	claims, err := v.issuer.Verify(token, nil)
	if err != nil {
		return apperr.Unauthorized(verifyLinkMessage, err.Error()).WithCause(err)
	}
	if claims.Subject == "" {
		return apperr.Unauthorized(verifyLinkMessage, "The verify token was missing a subject claim")
	}

	user, err := v.findByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.Unauthorized(verifyLinkMessage, "Could not find the corresponding user defined in the verify account token")
	}
	if user.IsVerified() {
		return nil
	}
	if err := v.repomanager.Users(v.db).MarkVerified(ctx, user.ID, v.now()); err != nil {
		return fmt.Errorf("error marking user verified: %w", err)
	}
	return nil
}

// findByEmail returns (nil, nil) when no user matches.
func (v *CredentialVerifier) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := v.repomanager.Users(v.db).GetByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}
