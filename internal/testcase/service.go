package testcase

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/opentrusty/qaguard/internal/id"
)

const (
	maxTitleLength = 200
	maxBodyLength  = 10000
)

// Service manages test cases and their comments. Callers authorize first.
type Service struct {
	repo     Repository
	sanitize *bluemonday.Policy
	now      func() time.Time
}

// NewService creates a new test case service
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		sanitize: bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// Create stores a new test case in projectID.
func (s *Service) Create(ctx context.Context, projectID, authorID, title, description string) (*TestCase, error) {
	title = s.clean(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidTestCase, maxTitleLength)
	}
	description = s.clean(description)
	if utf8.RuneCountInString(description) > maxBodyLength {
		return nil, fmt.Errorf("%w: description too long", ErrInvalidTestCase)
	}

	tc := &TestCase{
		ID:          id.NewUUIDv7(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		CreatedBy:   authorID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, tc); err != nil {
		return nil, fmt.Errorf("failed to create test case: %w", err)
	}
	return tc, nil
}

// Get returns a test case in projectID.
func (s *Service) Get(ctx context.Context, projectID, testCaseID string) (*TestCase, error) {
	return s.repo.Get(ctx, projectID, testCaseID)
}

// List returns the test cases of a project.
func (s *Service) List(ctx context.Context, projectID string) ([]*TestCase, error) {
	return s.repo.List(ctx, projectID)
}

// Delete removes a test case in projectID.
func (s *Service) Delete(ctx context.Context, projectID, testCaseID string) error {
	return s.repo.Delete(ctx, projectID, testCaseID)
}

// AddComment attaches a comment to an existing test case in projectID.
func (s *Service) AddComment(ctx context.Context, projectID, testCaseID, authorID, body string) (*Comment, error) {
	if _, err := s.repo.Get(ctx, projectID, testCaseID); err != nil {
		return nil, err
	}

	body = s.clean(body)
	if body == "" || utf8.RuneCountInString(body) > maxBodyLength {
		return nil, fmt.Errorf("%w: comment must be 1-%d characters", ErrInvalidTestCase, maxBodyLength)
	}

	c := &Comment{
		ID:         id.NewUUIDv7(),
		TestCaseID: testCaseID,
		AuthorID:   authorID,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return c, nil
}

// ListComments lists the comments on a test case in projectID.
func (s *Service) ListComments(ctx context.Context, projectID, testCaseID string) ([]*Comment, error) {
	if _, err := s.repo.Get(ctx, projectID, testCaseID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, testCaseID)
}

// maxCleanPasses bounds entity nesting such as "&amp;lt;" in clean.
const maxCleanPasses = 4

// clean strips all markup and surrounding whitespace and returns plain text:
// entities the sanitizer emits are decoded, so "&" is stored as "&" and
// length limits count what the user typed. Decoding can surface markup that
// was entity-encoded in the input, so the text is sanitized again until it
// no longer changes.
func (s *Service) clean(text string) string {
	for range maxCleanPasses {
		next := html.UnescapeString(s.sanitize.Sanitize(text))
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(s.sanitize.Sanitize(text))
}
