package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// identityKey holds the authenticated user id in the echo context.
	identityKey = "user_id"
	// guardedKey holds the project ids ProjectAccess authorized.
	guardedKey = "guarded_project_ids"
)

// Authorizer is satisfied by *guard.Guard.
type Authorizer interface {
	Authorize(ctx context.Context, identity string, level guard.Level, params guard.Params) error
	Rules() []guard.Rule
}

// BearerAuth validates the access token in the Authorization header and
// stores its subject under identityKey.
func BearerAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return apperr.Unauthenticated("Missing bearer token", "No Authorization: Bearer header")
			}
			claims, err := auth.Verify(strings.TrimSpace(raw), secret)
			if err != nil {
				return apperr.Unauthenticated("Invalid or expired access token", err.Error()).WithCause(err)
			}
			if claims.Subject == "" {
				return apperr.Unauthenticated("Invalid or expired access token", "Access token has no subject")
			}
			if _, err := uuid.Parse(claims.Subject); err != nil {
				return apperr.Unauthenticated("Invalid or expired access token", "Access token subject is not a user id")
			}
			c.Set(identityKey, claims.Subject)
			return next(c)
		}
	}
}

// Identity returns the authenticated user id, or "".
func Identity(c echo.Context) string {
	s, _ := c.Get(identityKey).(string)
	return s
}

// ProjectAccess runs the project guard at level before the handler.
func ProjectAccess(g Authorizer, level guard.Level) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			params, err := requestParams(c)
			if err != nil {
				return err
			}
			if err := g.Authorize(c.Request().Context(), Identity(c), level, params); err != nil {
				return err
			}
			c.Set(guardedKey, params.Candidates(g.Rules()))
			return next(c)
		}
	}
}

// guardedProject reports whether id is one of the project ids ProjectAccess
// checked for this request. Handlers must only act on such ids.
func guardedProject(c echo.Context, id string) bool {
	ids, _ := c.Get(guardedKey).([]string)
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// requestParams collects path, query and top-level JSON body values. The
// body is restored so the handler can bind it again.
func requestParams(c echo.Context) (guard.Params, error) {
	p := guard.Params{}

	names, values := c.ParamNames(), c.ParamValues()
	for i, name := range names {
		if i < len(values) {
			p.Set(guard.SourcePath, name, values[i])
		}
	}
	for name, vs := range c.QueryParams() {
		if len(vs) > 0 {
			p.Set(guard.SourceQuery, name, vs[0])
		}
	}

	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return p, nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, apperr.Invalid("Could not read request body", err.Error())
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		// Non-object bodies carry no project ids; the handler reports them.
		return p, nil
	}
	for k, v := range body {
		switch t := v.(type) {
		case string:
			p.Set(guard.SourceBody, k, t)
		case json.Number:
			p.Set(guard.SourceBody, k, t.String())
		}
	}
	return p, nil
}
