package projectusers

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

func (r *PostgresRepository) Get(ctx context.Context, userID, projectID string) (*models.ProjectUser, error) {
	query := `
		SELECT user_id, project_id, created_at
		FROM project_users
		WHERE user_id = $1 AND project_id = $2
	`
	pu := &models.ProjectUser{}
	err := r.db.QueryRowContext(ctx, query, userID, projectID).Scan(&pu.UserID, &pu.ProjectID, &pu.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pu, nil
}

func (r *PostgresRepository) List(ctx context.Context, projectID string) ([]*models.User, error) {
	query := `
		SELECT u.id, u.email, u.verified_at, u.created_at
		FROM project_users pu
		JOIN users u ON u.id = pu.user_id
		WHERE pu.project_id = $1
		ORDER BY pu.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		var (
			u          models.User
			verifiedAt sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Email, &verifiedAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			u.VerifiedAt = &t
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID, projectID string) (*models.ProjectUser, error) {
	query := `
		INSERT INTO project_users (user_id, project_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, project_id) DO NOTHING
		RETURNING created_at
	`
	pu := &models.ProjectUser{UserID: userID, ProjectID: projectID}
	if err := r.db.QueryRowContext(ctx, query, userID, projectID).Scan(&pu.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pu, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, projectID, userID string) error {
	query := `
		DELETE FROM project_users
		WHERE user_id = $1 AND project_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, projectID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
