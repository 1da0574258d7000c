// Package refreshtokens declares the credential-store contract for refresh
// tokens (one row per login session) and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository stores and expires refresh tokens.
type Repository interface {
	// Create persists token and fills in its ID and CreatedAt.
	Create(ctx context.Context, token *models.RefreshToken) error
	// Find looks a row up by its opaque token value. Implementations return
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	// Expire moves the expiration of row id to at, unless the row has already
	// expired before at. Expiring an unknown id is not an error.
	Expire(ctx context.Context, id string, at time.Time) error
}
