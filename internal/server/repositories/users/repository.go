// Package users declares the credential-store contract for user records and
// its PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository reads and mutates user records. Lookups return
// common.ErrorNotFound when no row matches.
type Repository interface {
	// Create inserts a user and returns it with ID and timestamps filled in.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches the normalized (trimmed, lower-cased) address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
}
