// Package projects provides read access to projects for the authorization
// core, plus creation for the admin CLI.
package projects

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	// Get returns common.ErrorNotFound when the project does not exist.
	Get(ctx context.Context, id string) (*models.Project, error)
}
