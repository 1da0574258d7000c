package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

type stubSessions struct {
	mu      sync.Mutex
	expired []string
}

func (s *stubSessions) CreateSession(_ context.Context, u *models.User) (*services.Session, error) {
	return &services.Session{AccessToken: "access-" + u.ID, RefreshToken: "refresh-" + u.ID, ExpiresIn: 900}, nil
}

func (s *stubSessions) Refresh(_ context.Context, token string) (*services.AccessToken, error) {
	if token != "good-refresh" {
		return nil, apperr.Unauthorized("Invalid or expired refresh token", "stub")
	}
	return &services.AccessToken{Token: "fresh-access", ExpiresIn: 900}, nil
}

func (s *stubSessions) Expire(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, token)
	return nil
}

type stubCredentials struct{}

func (stubCredentials) VerifyPassword(_ context.Context, email, password string) (*models.User, error) {
	if email != "alice@example.com" || password != "secret" {
		return nil, apperr.Unauthenticated("incorrect username or password", "stub")
	}
	return &models.User{ID: "u1", Email: email}, nil
}

// recordingGuard remembers the last params it saw and denies when deny is set.
type recordingGuard struct {
	mu       sync.Mutex
	identity string
	level    guard.Level
	params   guard.Params
	deny     error
}

func (g *recordingGuard) Authorize(_ context.Context, identity string, level guard.Level, params guard.Params) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity, g.level, g.params = identity, level, params
	return g.deny
}

type memMembers struct {
	mu    sync.Mutex
	users map[string]*models.User
	edges map[[2]string]bool // {userID, projectID}
}

func newMemMembers() *memMembers {
	return &memMembers{users: map[string]*models.User{}, edges: map[[2]string]bool{}}
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
	for id, u := range m.users {
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
