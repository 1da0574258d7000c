// Package projectusers manages project membership edges.
package projectusers

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when userID is not a member of projectID.
	Get(ctx context.Context, userID, projectID string) (*models.ProjectUser, error)
	// List returns the users that belong to projectID.
	List(ctx context.Context, projectID string) ([]*models.User, error)
	// Create adds the membership edge; common.ErrorAlreadyExists if present.
	Create(ctx context.Context, userID, projectID string) (*models.ProjectUser, error)
	// Delete removes the edge; common.ErrorNotFound if absent.
	Delete(ctx context.Context, projectID, userID string) error
}
