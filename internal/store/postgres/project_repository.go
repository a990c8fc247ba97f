package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opentrusty/qaguard/internal/organization"
)

// ProjectRepository implements organization.ProjectRepository
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*organization.Project, error) {
	var p organization.Project
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// ListByOrganization lists an organization's projects by name
func (r *ProjectRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*organization.Project, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, organization_id, name, created_at FROM projects
		WHERE organization_id = $1
		ORDER BY name
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*organization.Project
	for rows.Next() {
		var p organization.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}
