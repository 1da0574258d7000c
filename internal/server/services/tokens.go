// Package services contains the server-side authentication logic: token
// issuance, login sessions and password/verification flows. Project
// authorization lives in the guard package.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

const (
	AccessTokenTTL            = 15 * time.Minute
	RefreshTokenTTL           = 365 * 24 * time.Hour
	PasswordResetTokenTTL     = 10 * time.Minute
	EmailVerificationTokenTTL = 24 * time.Hour

	refreshTokenBytes = 32
)

// AccessToken is a signed access token together with its lifetime in seconds.
type AccessToken struct {
	Token     string
	ExpiresIn int64
}

// TokenIssuer mints every token kind. Access and verification tokens are
// signed with the process-wide secret; reset tokens with the user's current
// password hash, so changing the password invalidates them.
type TokenIssuer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	secret      []byte
	now         func() time.Time
}

func NewTokenIssuer(db *sql.DB, m repomanager.RepositoryManager, secret string) *TokenIssuer {
	return &TokenIssuer{db: db, repomanager: m, secret: []byte(secret), now: time.Now}
}

func (t *TokenIssuer) IssueAccessToken(user *models.User) (*AccessToken, error) {
	token, err := auth.Sign(user.ID, t.secret, AccessTokenTTL, t.now())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &AccessToken{Token: token, ExpiresIn: int64(AccessTokenTTL / time.Second)}, nil
}

// IssueRefreshToken persists a new opaque refresh token bound to sessionID.
func (t *TokenIssuer) IssueRefreshToken(ctx context.Context, user *models.User, sessionID string) (string, error) {
	value, err := cryptox.RandomToken(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	row := &models.RefreshToken{
		SessionID: sessionID,
		Token:     value,
		Subject:   user.ID,
		ExpiresAt: t.now().Add(RefreshTokenTTL),
	}
	if err := t.repomanager.RefreshTokens(t.db).Create(ctx, row); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return value, nil
}

func (t *TokenIssuer) IssuePasswordResetToken(user *models.User) (string, error) {
	if !user.HasPassword() {
		return "", apperr.Missing("The user does not have a password", "The password property on the user was not set")
	}
	token, err := auth.Sign(user.Email, []byte(user.PasswordHash), PasswordResetTokenTTL, t.now())
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return token, nil
}

func (t *TokenIssuer) IssueEmailVerificationToken(user *models.User) (string, error) {
	token, err := auth.Sign(user.Email, t.secret, EmailVerificationTokenTTL, t.now())
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return token, nil
}

// Decode returns the claims of token without checking its signature.
func (t *TokenIssuer) Decode(token string) (*auth.Claims, error) {
	return auth.Decode(token)
}

// Verify checks token against secret, or against the process-wide secret
// when secret is empty.
func (t *TokenIssuer) Verify(token string, secret []byte) (*auth.Claims, error) {
	if len(secret) == 0 {
		secret = t.secret
	}
	return auth.Verify(token, secret)
}
