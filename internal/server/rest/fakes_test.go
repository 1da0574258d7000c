package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

type stubSessions struct {
	mu       sync.Mutex
	expired  []string
	refresh  map[string]bool
	secure   bool
	domain   string
	createFn func(u *models.User) (*services.Session, error)
}

func (s *stubSessions) CreateSession(_ context.Context, u *models.User) (*services.Session, error) {
	if s.createFn != nil {
		return s.createFn(u)
	}
	return &services.Session{AccessToken: "access-" + u.ID, RefreshToken: "refresh-" + u.ID, ExpiresIn: 900}, nil
}

func (s *stubSessions) Refresh(_ context.Context, token string) (*services.AccessToken, error) {
	if !s.refresh[token] {
		return nil, apperr.Unauthorized("Invalid or expired refresh token", "stub: unknown "+token)
	}
	return &services.AccessToken{Token: "fresh-access", ExpiresIn: 900}, nil
}

func (s *stubSessions) Expire(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, token)
	return nil
}

func (s *stubSessions) CookieSettings() services.CookieSettings {
	return services.CookieSettings{
		Secure:   s.secure,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(services.RefreshTokenTTL),
		Domain:   s.domain,
	}
}

type stubCredentials struct {
	users      map[string]*models.User // email -> user
	passwords  map[string]string       // email -> password
	resetToken string
	resets     []string
	verified   []string
}

func (s *stubCredentials) VerifyPassword(_ context.Context, email, password string) (*models.User, error) {
	u, ok := s.users[email]
	if !ok || s.passwords[email] != password {
		return nil, apperr.Unauthenticated("incorrect username or password", "stub: bad credentials for "+email)
	}
	return u, nil
}

func (s *stubCredentials) GeneratePasswordResetToken(_ context.Context, email string) (string, error) {
	if _, ok := s.users[email]; !ok {
		return "", apperr.NoSuchUser("The user does not exist", "stub")
	}
	return s.resetToken, nil
}

func (s *stubCredentials) ResetPassword(_ context.Context, password, token string) error {
	if token != s.resetToken {
		return apperr.Unauthorized("Your reset password link is either invalid or expired", "stub: signature mismatch")
	}
	s.resets = append(s.resets, password)
	return nil
}

func (s *stubCredentials) MarkUserAsVerified(_ context.Context, token string) error {
	if token == "" {
		return apperr.Unauthorized("Your verify user link is either invalid or expired", "stub: empty")
	}
	s.verified = append(s.verified, token)
	return nil
}

type memUsers struct {
	byID map[string]*models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) UpdatePassword(context.Context, string, string) error  { return nil }
func (m *memUsers) MarkVerified(context.Context, string, time.Time) error { return nil }

type memProjects struct {
	byID map[string]*models.Project
}

func (m *memProjects) Create(_ context.Context, p *models.Project) (*models.Project, error) {
	m.byID[p.ID] = p
	return p, nil
}

func (m *memProjects) Get(_ context.Context, id string) (*models.Project, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

type memMembers struct {
	mu    sync.Mutex
	users *memUsers
	edges map[[2]string]bool // {userID, projectID}
}

func (m *memMembers) Get(_ context.Context, userID, projectID string) (*models.ProjectUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.edges[[2]string{userID, projectID}] {
		return nil, common.ErrorNotFound
	}
	return &models.ProjectUser{UserID: userID, ProjectID: projectID}, nil
}

func (m *memMembers) List(_ context.Context, projectID string) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for id, u := range m.users.byID {
		if m.edges[[2]string{id, projectID}] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memMembers) Create(_ context.Context, userID, projectID string) (*models.ProjectUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{userID, projectID}
	if m.edges[k] {
		return nil, common.ErrorAlreadyExists
	}
	m.edges[k] = true
	return &models.ProjectUser{UserID: userID, ProjectID: projectID, CreatedAt: time.Now()}, nil
}

func (m *memMembers) Delete(_ context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{userID, projectID}
	if !m.edges[k] {
		return common.ErrorNotFound
	}
	delete(m.edges, k)
	return nil
}

type recordingNotifier struct {
	events []notify.PasswordResetRequested
	err    error
}

func (r *recordingNotifier) PasswordResetRequested(_ context.Context, evt notify.PasswordResetRequested) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }
