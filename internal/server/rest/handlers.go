package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/projectusers"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionService is satisfied by *services.SessionManager.
type SessionService interface {
	CreateSession(ctx context.Context, user *models.User) (*services.Session, error)
	Refresh(ctx context.Context, token string) (*services.AccessToken, error)
	Expire(ctx context.Context, token string) error
	CookieSettings() services.CookieSettings
}

// CredentialService is satisfied by *services.CredentialVerifier.
type CredentialService interface {
	VerifyPassword(ctx context.Context, email, password string) (*models.User, error)
	GeneratePasswordResetToken(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, password, resetToken string) error
	MarkUserAsVerified(ctx context.Context, token string) error
}

type handler struct {
	sessions    SessionService
	credentials CredentialService
	users       users.Repository
	members     projectusers.Repository
	notifier    notify.Notifier
	logger      logging.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type projectUserRequest struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

type userResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Invalid("Malformed request body", err.Error()).WithCause(err)
	}
	return nil
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.Invalid("email and password are required", "Empty login field")
	}

	ctx := c.Request().Context()
	user, err := h.credentials.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	session, err := h.sessions.CreateSession(ctx, user)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.RefreshToken)
	h.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return c.JSON(http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	})
}

func (h *handler) refresh(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}
	at, err := h.sessions.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accessTokenResponse{AccessToken: at.Token, ExpiresIn: at.ExpiresIn})
}

func (h *handler) logout(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}
	if token != "" {
		if err := h.sessions.Expire(c.Request().Context(), token); err != nil {
			return err
		}
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) forgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	token, err := h.credentials.GeneratePasswordResetToken(ctx, req.Email)
	if err != nil {
		return err
	}
	evt := notify.PasswordResetRequested{
		Email:     users.NormalizeEmail(req.Email),
		Token:     token,
		ExpiresIn: int64(services.PasswordResetTokenTTL / time.Second),
	}
	if err := h.notifier.PasswordResetRequested(ctx, evt); err != nil {
		return fmt.Errorf("publish reset notification: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.credentials.ResetPassword(c.Request().Context(), req.Password, req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) verify(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.credentials.MarkUserAsVerified(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) me(c echo.Context) error {
	user, err := h.users.GetByID(c.Request().Context(), Identity(c))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return apperr.Unauthenticated("Invalid or expired access token", "Access token subject no longer exists")
		}
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *handler) listProjectUsers(c echo.Context) error {
	projectID := c.Param("projectId")
	if !guardedProject(c, projectID) {
		return notGuarded(projectID)
	}
	list, err := h.members.List(c.Request().Context(), projectID)
	if err != nil {
		return err
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) addProjectUser(c echo.Context) error {
	var req projectUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := uuid.Parse(req.ProjectID); err != nil {
		return apperr.Invalid("project_id must be a UUID", err.Error())
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return apperr.Invalid("user_id must be a UUID", err.Error())
	}
	if !guardedProject(c, req.ProjectID) {
		return notGuarded(req.ProjectID)
	}

	ctx := c.Request().Context()
	if _, err := h.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return apperr.NoSuchUser("The user does not exist", "Membership target user not found: "+req.UserID)
		}
		return err
	}

	pu, err := h.members.Create(ctx, req.UserID, req.ProjectID)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return apperr.New(apperr.ValidationError, http.StatusConflict, "The user is already a member of the project", "Duplicate membership edge")
		}
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"project_id": pu.ProjectID,
		"user_id":    pu.UserID,
		"created_at": pu.CreatedAt,
	})
}

func (h *handler) removeProjectUser(c echo.Context) error {
	projectID, userID := c.Param("projectId"), c.Param("userId")
	if !guardedProject(c, projectID) {
		return notGuarded(projectID)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return apperr.Invalid("userId must be a UUID", err.Error())
	}
	if err := h.members.Delete(c.Request().Context(), projectID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return apperr.NoSuchUser("The user is not a member of the project", "No membership edge for "+userID)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// notGuarded fails closed when a handler is about to act on a project id
// the guard never saw, for example one bound from a differently cased key.
func notGuarded(projectID string) error {
	return apperr.NoSuchProject("The project does not exist", "Project id was not authorized by the guard: "+projectID)
}

func (h *handler) setRefreshCookie(c echo.Context, token string) {
	cs := h.sessions.CookieSettings()
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cs.Domain,
		Expires:  cs.Expires,
		Secure:   cs.Secure,
		HttpOnly: cs.HTTPOnly,
		SameSite: cs.SameSite,
	})
}

func (h *handler) clearRefreshCookie(c echo.Context) {
	cs := h.sessions.CookieSettings()
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cs.Domain,
		MaxAge:   -1,
		Secure:   cs.Secure,
		HttpOnly: cs.HTTPOnly,
		SameSite: cs.SameSite,
	})
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body field.
func refreshTokenFrom(c echo.Context) (string, error) {
	if ck, err := c.Cookie(common.RefreshTokenCookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	var req refreshRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(req.RefreshToken), nil
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, VerifiedAt: u.VerifiedAt}
}
