package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opentrusty/qaguard/internal/testcase"
)

// TestCaseRepository implements testcase.Repository
type TestCaseRepository struct {
	db *DB
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(db *DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

// Create inserts a test case
func (r *TestCaseRepository) Create(ctx context.Context, tc *testcase.TestCase) error {
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO test_cases (id, project_id, title, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tc.ID, tc.ProjectID, tc.Title, tc.Description, tc.CreatedBy, tc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create test case: %w", err)
	}
	return nil
}

// Get retrieves a test case scoped to its project
func (r *TestCaseRepository) Get(ctx context.Context, projectID, id string) (*testcase.TestCase, error) {
	var tc testcase.TestCase
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, created_by, created_at
		FROM test_cases
		WHERE project_id = $1 AND id = $2
	`, projectID, id).Scan(&tc.ID, &tc.ProjectID, &tc.Title, &tc.Description, &tc.CreatedBy, &tc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, testcase.ErrTestCaseNotFound
		}
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}
	return &tc, nil
}

// List lists a project's test cases, newest first
func (r *TestCaseRepository) List(ctx context.Context, projectID string) ([]*testcase.TestCase, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, project_id, title, description, created_by, created_at
		FROM test_cases
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	var out []*testcase.TestCase
	for rows.Next() {
		var tc testcase.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProjectID, &tc.Title, &tc.Description, &tc.CreatedBy, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		out = append(out, &tc)
	}
	return out, rows.Err()
}

// Delete removes a test case scoped to its project
func (r *TestCaseRepository) Delete(ctx context.Context, projectID, id string) error {
	result, err := r.db.sql.ExecContext(ctx, `
		DELETE FROM test_cases WHERE project_id = $1 AND id = $2
	`, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete test case: %w", err)
	}
	return expectRow(result, testcase.ErrTestCaseNotFound)
}

// AddComment inserts a comment
func (r *TestCaseRepository) AddComment(ctx context.Context, c *testcase.Comment) error {
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO test_case_comments (id, test_case_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.TestCaseID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// ListComments lists a test case's comments, oldest first
func (r *TestCaseRepository) ListComments(ctx context.Context, testCaseID string) ([]*testcase.Comment, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, test_case_id, author_id, body, created_at
		FROM test_case_comments
		WHERE test_case_id = $1
		ORDER BY created_at
	`, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []*testcase.Comment
	for rows.Next() {
		var c testcase.Comment
		if err := rows.Scan(&c.ID, &c.TestCaseID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
