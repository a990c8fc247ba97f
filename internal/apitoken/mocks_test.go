package apitoken

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/organization"
	"github.com/stretchr/testify/mock"
)

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) Create(ctx context.Context, token *Token, permissions []authz.Permission, projectIDs []string) error {
	args := m.Called(ctx, token, permissions, projectIDs)
	return args.Error(0)
}

func (m *mockCredentialStore) GetByID(ctx context.Context, id string) (*Token, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Token), args.Error(1)
}

func (m *mockCredentialStore) ListActiveByLookupPrefix(ctx context.Context, prefix string) ([]*Token, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Token), args.Error(1)
}

func (m *mockCredentialStore) ListByUser(ctx context.Context, organizationID, userID string) ([]*Token, error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).([]*Token), args.Error(1)
}

func (m *mockCredentialStore) ListPending(ctx context.Context, organizationID string) ([]*Token, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).([]*Token), args.Error(1)
}

func (m *mockCredentialStore) UpdateScopeStatus(ctx context.Context, id string, from, to ScopeStatus, reviewedBy string, at time.Time) error {
	args := m.Called(ctx, id, from, to, reviewedBy, at)
	return args.Error(0)
}

func (m *mockCredentialStore) Revoke(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockCredentialStore) TouchLastUsed(ctx context.Context, id string, at time.Time, ip string) error {
	args := m.Called(ctx, id, at, ip)
	return args.Error(0)
}

type mockGrantStore struct {
	mock.Mock
}

func (m *mockGrantStore) ListPermissions(ctx context.Context, tokenID string) ([]authz.Permission, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]authz.Permission), args.Error(1)
}

func (m *mockGrantStore) ListProjectScopes(ctx context.Context, tokenID string) ([]string, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) MemberRole(ctx context.Context, organizationID, userID string) (authz.Role, error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).(authz.Role), args.Error(1)
}

// projectDirectory maps project ids to their organization. The id "broken"
// fails with a storage error.
type projectDirectory map[string]string

func testProjects() projectDirectory {
	return projectDirectory{"p1": "org-1", "p2": "org-1", "px": "org-2"}
}

func (d projectDirectory) GetProject(_ context.Context, projectID string) (*organization.Project, error) {
	if projectID == "broken" {
		return nil, errors.New("connection reset")
	}
	orgID, ok := d[projectID]
	if !ok {
		return nil, organization.ErrProjectNotFound
	}
	return &organization.Project{ID: projectID, OrganizationID: orgID, Name: projectID}, nil
}

// syncSubmitter runs tasks inline so tests can assert on side effects.
type syncSubmitter struct {
	mu    sync.Mutex
	names []string
}

func (s *syncSubmitter) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	_ = fn(ctx)
	return true
}

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Log(_ context.Context, e audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureAudit) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// memStore is an in-memory CredentialStore and GrantStore with the same
// filtering rules as the Postgres repository.
type memStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
	perms  map[string][]authz.Permission
	scopes map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		tokens: make(map[string]*Token),
		perms:  make(map[string][]authz.Permission),
		scopes: make(map[string][]string),
	}
}

func (s *memStore) Create(_ context.Context, token *Token, permissions []authz.Permission, projectIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.ID] = &cp
	s.perms[token.ID] = slices.Clone(permissions)
	s.scopes[token.ID] = slices.Clone(projectIDs)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) ListActiveByLookupPrefix(_ context.Context, prefix string) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Token
	for _, t := range s.tokens {
		if t.LookupPrefix == prefix && t.Status == StatusActive && t.DeletedAt == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListByUser(_ context.Context, organizationID, userID string) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Token
	for _, t := range s.tokens {
		if t.OrganizationID == organizationID && t.UserID == userID && t.DeletedAt == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListPending(_ context.Context, organizationID string) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Token
	for _, t := range s.tokens {
		if t.OrganizationID == organizationID && t.ScopeStatus == ScopeStatusPending && t.DeletedAt == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) UpdateScopeStatus(_ context.Context, id string, from, to ScopeStatus, reviewedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil || t.ScopeStatus != from {
		return ErrNotPending
	}
	t.ScopeStatus = to
	t.ReviewedBy = reviewedBy
	t.ReviewedAt = &at
	return nil
}

func (s *memStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil {
		return ErrTokenNotFound
	}
	t.Status = StatusRevoked
	t.DeletedAt = &at
	return nil
}

func (s *memStore) TouchLastUsed(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &at
		t.LastUsedIP = ip
	}
	return nil
}

func (s *memStore) ListPermissions(_ context.Context, tokenID string) ([]authz.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.perms[tokenID]), nil
}

func (s *memStore) ListProjectScopes(_ context.Context, tokenID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.scopes[tokenID]), nil
}

func testHasher() *SecretHasher {
	return NewSecretHasher(HasherConfig{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}
