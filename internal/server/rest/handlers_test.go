package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "http-secret"

	projectA    = "11111111-1111-1111-1111-111111111111"
	projectDead = "33333333-3333-3333-3333-333333333333"

	adminID    = "aaaaaaaa-0000-0000-0000-000000000001"
	memberID   = "aaaaaaaa-0000-0000-0000-000000000002"
	outsiderID = "aaaaaaaa-0000-0000-0000-000000000003"
)

type testEnv struct {
	handler  http.Handler
	sessions *stubSessions
	creds    *stubCredentials
	members  *memMembers
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	us := &memUsers{byID: map[string]*models.User{
		adminID:    {ID: adminID, Email: "admin@example.com"},
		memberID:   {ID: memberID, Email: "member@example.com"},
		outsiderID: {ID: outsiderID, Email: "outsider@example.com"},
	}}
	ps := &memProjects{byID: map[string]*models.Project{
		projectA:    {ID: projectA, AdminID: adminID, HasActiveSubscription: true},
		projectDead: {ID: projectDead, AdminID: adminID, HasActiveSubscription: false},
	}}
	ms := &memMembers{users: us, edges: map[[2]string]bool{
		{adminID, projectA}:     true,
		{memberID, projectA}:    true,
		{adminID, projectDead}:  true,
		{memberID, projectDead}: true,
	}}

	env := &testEnv{
		sessions: &stubSessions{refresh: map[string]bool{"good-refresh": true}},
		creds: &stubCredentials{
			users:      map[string]*models.User{"member@example.com": us.byID[memberID]},
			passwords:  map[string]string{"member@example.com": "pw"},
			resetToken: "reset-tok",
		},
		members:  ms,
		notifier: &recordingNotifier{},
	}

	srv := NewHTTPServer(":0", Deps{
		Sessions:     env.sessions,
		Credentials:  env.creds,
		Guard:        guard.New(ps, ms),
		Users:        us,
		Members:      ms,
		Notifier:     env.notifier,
		AccessSecret: []byte(testSecret),
	})
	env.handler = srv.Handler()
	return env
}

type reqOpt func(*http.Request)

func withBearer(t *testing.T, subject string) reqOpt {
	tok, err := auth.Sign(subject, []byte(testSecret), time.Minute, time.Now())
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }
}

func withCookie(name, value string) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func (e *testEnv) do(method, path, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", `{"email":"member@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access-"+memberID, body.AccessToken)
	assert.Equal(t, "refresh-"+memberID, body.RefreshToken)
	assert.EqualValues(t, 900, body.ExpiresIn)

	ck := findCookie(rec, common.RefreshTokenCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, "refresh-"+memberID, ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}

func TestLogin_Failure_HidesDebug(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", `{"email":"member@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "AUTHENTICATION_FAILED", body["name"])
	assert.Equal(t, "incorrect username or password", body["message"])
	assert.NotContains(t, rec.Body.String(), "stub:")
	assert.Len(t, body, 2)
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec)["name"])

	rec = env.do(http.MethodPost, "/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/refresh", "", withCookie(common.RefreshTokenCookieName, "good-refresh"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body accessTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fresh-access", body.AccessToken)
	assert.EqualValues(t, 900, body.ExpiresIn)

	rec = env.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"good-refresh"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHORIZATION_FAILED", decodeError(t, rec)["name"])
}

func TestLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/logout", "", withCookie(common.RefreshTokenCookieName, "good-refresh"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"good-refresh"}, env.sessions.expired)

	ck := findCookie(rec, common.RefreshTokenCookieName)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Less(t, ck.MaxAge, 0)

	// without a token logout still succeeds
	rec = env.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, env.sessions.expired, 1)
}

func TestForgotPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/forgot-password", `{"email":"member@example.com"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, env.notifier.events, 1)
	evt := env.notifier.events[0]
	assert.Equal(t, "member@example.com", evt.Email)
	assert.Equal(t, "reset-tok", evt.Token)
	assert.EqualValues(t, 600, evt.ExpiresIn)

	rec = env.do(http.MethodPost, "/auth/forgot-password", `{"email":"who@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USER_DOES_NOT_EXIST", decodeError(t, rec)["name"])
}

func TestForgotPassword_NotifierFailureIs500(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.notifier.err = errors.New("broker down")

	rec := env.do(http.MethodPost, "/auth/forgot-password", `{"email":"member@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body["name"])
	assert.NotContains(t, body["message"], "broker")
}

func TestResetPasswordAndVerify(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/reset-password", `{"password":"new","token":"reset-tok"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"new"}, env.creds.resets)

	rec = env.do(http.MethodPost, "/auth/reset-password", `{"password":"new","token":"stale"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your reset password link is either invalid or expired", decodeError(t, rec)["message"])

	rec = env.do(http.MethodPost, "/auth/verify", `{"token":"verify-tok"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodPost, "/auth/verify", `{"token":""}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/me", "", func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer junk") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/me", "", withBearer(t, memberID))
	require.Equal(t, http.StatusOK, rec.Code)
	var u userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, memberID, u.ID)
	assert.Equal(t, "member@example.com", u.Email)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProjectRoutes_UserLevel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/projects/"+projectA+"/users", "", withBearer(t, memberID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = env.do(http.MethodGet, "/projects/"+projectA+"/users", "", withBearer(t, outsiderID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROJECT_DOES_NOT_EXIST", decodeError(t, rec)["name"])

	rec = env.do(http.MethodGet, "/projects/"+projectA+"/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProjectRoutes_InactiveSubscription(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, who := range []string{adminID, memberID} {
		rec := env.do(http.MethodGet, "/projects/"+projectDead+"/users", "", withBearer(t, who))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "The project does not exist", decodeError(t, rec)["message"])
	}
}

func TestProjectRoutes_AdminLevel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	body := `{"project_id":"` + projectA + `","user_id":"` + outsiderID + `"}`

	rec := env.do(http.MethodPost, "/projects/users", body, withBearer(t, memberID))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHORIZATION_FAILED", decodeError(t, rec)["name"])

	rec = env.do(http.MethodPost, "/projects/users", body, withBearer(t, adminID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/projects/users", body, withBearer(t, adminID))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodDelete, "/projects/"+projectA+"/users/"+outsiderID, "", withBearer(t, memberID))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodDelete, "/projects/"+projectA+"/users/"+outsiderID, "", withBearer(t, adminID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/projects/"+projectA+"/users/"+outsiderID, "", withBearer(t, adminID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectRoutes_AdminAddUnknownUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	body := `{"project_id":"` + projectA + `","user_id":"aaaaaaaa-0000-0000-0000-0000000000ff"}`

	rec := env.do(http.MethodPost, "/projects/users", body, withBearer(t, adminID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USER_DOES_NOT_EXIST", decodeError(t, rec)["name"])
}

func TestProjectRoutes_BodyProjectDiffersFromPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// the body names a second project the admin cannot use
	body := `{"projectId":"` + projectDead + `"}`
	rec := env.do(http.MethodDelete, "/projects/"+projectA+"/users/"+memberID, body, withBearer(t, adminID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectRoutes_CaseVariantBodyKeyFailsClosed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// echo binds keys case-insensitively, the guard matches them exactly
	for _, key := range []string{"Project_ID", "PROJECT_ID"} {
		body := `{"` + key + `":"` + projectA + `","user_id":"` + outsiderID + `"}`
		rec := env.do(http.MethodPost, "/projects/users", body, withBearer(t, outsiderID))
		assert.Equal(t, http.StatusNotFound, rec.Code, key)
		assert.Equal(t, "PROJECT_DOES_NOT_EXIST", decodeError(t, rec)["name"], key)
	}

	_, err := env.members.Get(context.Background(), outsiderID, projectA)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBearerAuth_RejectsNonUserSubject(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// verification tokens are signed with the same secret but carry an email
	rec := env.do(http.MethodGet, "/me", "", withBearer(t, "member@example.com"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_FAILED", decodeError(t, rec)["name"])

	rec = env.do(http.MethodGet, "/projects/"+projectA+"/users", "", withBearer(t, "member@example.com"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProjectRoutes_RemoveMalformedUserID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/projects/"+projectA+"/users/not-a-uuid", "", withBearer(t, adminID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec)["name"])
}
