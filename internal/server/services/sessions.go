package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// refreshFailedMessage is the public message for every refresh failure.
const refreshFailedMessage = "Invalid or expired refresh token"

// Session is the result of a successful login.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// CookieSettings describes how the refresh token cookie is written.
type CookieSettings struct {
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Expires  time.Time
	Domain   string
}

// SessionManager owns the Active -> Expired lifecycle of refresh tokens.
type SessionManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *TokenIssuer
	local       bool
	appDomain   string
	now         func() time.Time
}

func NewSessionManager(db *sql.DB, m repomanager.RepositoryManager, issuer *TokenIssuer, cfg *config.Config) *SessionManager {
	return &SessionManager{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		local:       cfg.IsLocal(),
		appDomain:   cfg.AppDomain,
		now:         time.Now,
	}
}

// CreateSession starts a new session for an already authenticated user.
func (s *SessionManager) CreateSession(ctx context.Context, user *models.User) (*Session, error) {
	sessionID := uuid.NewString()

	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefreshToken(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access.Token, RefreshToken: refresh, ExpiresIn: access.ExpiresIn}, nil
}

// Refresh mints a new access token for a live refresh token. The refresh
// token itself is left unchanged.
func (s *SessionManager) Refresh(ctx context.Context, token string) (*AccessToken, error) {
	row, err := s.repomanager.RefreshTokens(s.db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, apperr.Unauthorized(refreshFailedMessage, "The attached refresh token does not exist")
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if row.Expired(s.now()) {
		return nil, apperr.Unauthorized(refreshFailedMessage, "The attached refresh token is expired")
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, row.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, apperr.Unauthorized(refreshFailedMessage, "The user specified in the refresh token does not exist")
		}
		return nil, fmt.Errorf("error loading refresh token subject: %w", err)
	}

	return s.issuer.IssueAccessToken(user)
}

// Expire ends the session behind token. Unknown tokens are ignored.
func (s *SessionManager) Expire(ctx context.Context, token string) error {
	repo := s.repomanager.RefreshTokens(s.db)

	row, err := repo.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}
	if err := repo.Expire(ctx, row.ID, s.now()); err != nil {
		return fmt.Errorf("error expiring refresh token: %w", err)
	}
	return nil
}

func (s *SessionManager) CookieSettings() CookieSettings {
	cs := CookieSettings{
		Secure:   !s.local,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(RefreshTokenTTL),
	}
	if !s.local {
		cs.Domain = s.appDomain
	}
	return cs
}
