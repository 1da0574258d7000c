// Package guard authorizes project-scoped requests. A request may name its
// project in several places and under several spellings; every distinct id
// found must be a project the caller belongs to, with an active
// subscription, and for admin-level access one the caller administers.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/projects"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/projectusers"
	"github.com/google/uuid"
)

type Level int

const (
	AccessUser Level = iota
	AccessAdmin
)

func (l Level) String() string {
	if l == AccessAdmin {
		return "admin"
	}
	return "user"
}

const (
	projectMissingMessage = "The project does not exist"
	notAuthorizedMessage  = "The user is not authorized for this project"
)

type Guard struct {
	projects projects.Repository
	members  projectusers.Repository
	rules    []Rule
	logger   logging.Logger
}

type Option func(*Guard)

// WithRules replaces the candidate extraction rules.
func WithRules(rules ...Rule) Option {
	return func(g *Guard) { g.rules = append([]Rule(nil), rules...) }
}

// AddRules appends extraction rules after the current ones.
func AddRules(rules ...Rule) Option {
	return func(g *Guard) { g.rules = append(g.rules, rules...) }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

func New(p projects.Repository, m projectusers.Repository, opts ...Option) *Guard {
	g := &Guard{
		projects: p,
		members:  m,
		rules:    append([]Rule(nil), DefaultRules...),
		logger:   logging.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// Authorize checks identity against every project id in params at level.
// It returns nil when params reference no project at all.
func (g *Guard) Authorize(ctx context.Context, identity string, level Level, params Params) error {
	candidates := params.Candidates(g.rules)
	if len(candidates) == 0 {
		return nil
	}
	if identity == "" {
		return apperr.Unauthorized(notAuthorizedMessage, "No authenticated identity reached the project guard")
	}

	for _, projectID := range candidates {
		if err := g.authorizeOne(ctx, identity, level, projectID); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) authorizeOne(ctx context.Context, identity string, level Level, projectID string) error {
	if _, err := uuid.Parse(projectID); err != nil {
		return apperr.NoSuchProject(projectMissingMessage, "Project id is not a UUID: "+projectID)
	}

	project, err := g.projects.Get(ctx, projectID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error loading project: %w", err)
	}
	_, merr := g.members.Get(ctx, identity, projectID)
	if merr != nil && !errors.Is(merr, common.ErrorNotFound) {
		return fmt.Errorf("error loading project membership: %w", merr)
	}

	switch {
	case project == nil:
		return apperr.NoSuchProject(projectMissingMessage, "Project not found: "+projectID)
	case merr != nil:
		return apperr.NoSuchProject(projectMissingMessage, "Caller is not a member of project "+projectID)
	case !project.HasActiveSubscription:
		return apperr.NoSuchProject(projectMissingMessage, "Project subscription is inactive: "+projectID)
	}

	if level == AccessAdmin && project.AdminID != identity {
		return apperr.Unauthorized(notAuthorizedMessage, "Caller is not the admin of project "+projectID)
	}

	g.logger.Debug(ctx, "project access granted", "project_id", projectID, "user_id", identity, "level", level.String())
	return nil
}
