package testcase

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTestCaseNotFound = errors.New("test case not found")
	ErrInvalidTestCase  = errors.New("invalid test case")
)

// TestCase is a test artifact owned by a project.
type TestCase struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a note attached to a test case.
type Comment struct {
	ID         string    `json:"id"`
	TestCaseID string    `json:"test_case_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository defines the interface for test case storage
type Repository interface {
	Create(ctx context.Context, tc *TestCase) error
	// Get returns ErrTestCaseNotFound when id is unknown within projectID.
	Get(ctx context.Context, projectID, id string) (*TestCase, error)
	List(ctx context.Context, projectID string) ([]*TestCase, error)
	Delete(ctx context.Context, projectID, id string) error
	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, testCaseID string) ([]*Comment, error)
}
