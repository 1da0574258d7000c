package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	query := `
		INSERT INTO projects (name, admin_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, project.Name, project.AdminID).Scan(&project.ID, &project.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return project, nil
}

// Get loads a project together with its admin's subscription state.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT p.id, p.name, p.admin_id, u.has_active_subscription, p.created_at
		FROM projects p
		JOIN users u ON u.id = p.admin_id
		WHERE p.id = $1
	`
	p := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.AdminID, &p.HasActiveSubscription, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}
