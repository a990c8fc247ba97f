package http

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/opentrusty/qaguard/internal/activity"
	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/organization"
	"github.com/opentrusty/qaguard/internal/testcase"
)

// syncTasks runs submitted work inline.
type syncTasks struct{}

func (syncTasks) Submit(ctx context.Context, _ string, fn func(ctx context.Context) error) bool {
	_ = fn(ctx)
	return true
}

type tokenStore struct {
	mu     sync.Mutex
	tokens map[string]*apitoken.Token
	perms  map[string][]authz.Permission
	scopes map[string][]string
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		tokens: make(map[string]*apitoken.Token),
		perms:  make(map[string][]authz.Permission),
		scopes: make(map[string][]string),
	}
}

func (s *tokenStore) Create(_ context.Context, t *apitoken.Token, perms []authz.Permission, projectIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[t.ID] = &cp
	s.perms[t.ID] = slices.Clone(perms)
	s.scopes[t.ID] = slices.Clone(projectIDs)
	return nil
}

func (s *tokenStore) GetByID(_ context.Context, id string) (*apitoken.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil {
		return nil, apitoken.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *tokenStore) filter(keep func(*apitoken.Token) bool) []*apitoken.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*apitoken.Token
	for _, t := range s.tokens {
		if t.DeletedAt == nil && keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (s *tokenStore) ListActiveByLookupPrefix(_ context.Context, prefix string) ([]*apitoken.Token, error) {
	return s.filter(func(t *apitoken.Token) bool {
		return t.LookupPrefix == prefix && t.Status == apitoken.StatusActive
	}), nil
}

func (s *tokenStore) ListByUser(_ context.Context, organizationID, userID string) ([]*apitoken.Token, error) {
	return s.filter(func(t *apitoken.Token) bool {
		return t.OrganizationID == organizationID && t.UserID == userID
	}), nil
}

func (s *tokenStore) ListPending(_ context.Context, organizationID string) ([]*apitoken.Token, error) {
	return s.filter(func(t *apitoken.Token) bool {
		return t.OrganizationID == organizationID && t.ScopeStatus == apitoken.ScopeStatusPending
	}), nil
}

func (s *tokenStore) UpdateScopeStatus(_ context.Context, id string, from, to apitoken.ScopeStatus, reviewedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil || t.ScopeStatus != from {
		return apitoken.ErrNotPending
	}
	t.ScopeStatus = to
	t.ReviewedBy = reviewedBy
	t.ReviewedAt = &at
	return nil
}

func (s *tokenStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.DeletedAt != nil {
		return apitoken.ErrTokenNotFound
	}
	t.Status = apitoken.StatusRevoked
	t.DeletedAt = &at
	return nil
}

func (s *tokenStore) TouchLastUsed(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &at
		t.LastUsedIP = ip
	}
	return nil
}

func (s *tokenStore) ListPermissions(_ context.Context, tokenID string) ([]authz.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.perms[tokenID]), nil
}

func (s *tokenStore) ListProjectScopes(_ context.Context, tokenID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.scopes[tokenID]), nil
}

type memberStore struct {
	mu      sync.Mutex
	members map[string]*organization.Member
}

func memberKey(org, user string) string { return org + "/" + user }

func newMemberStore(members ...*organization.Member) *memberStore {
	s := &memberStore{members: make(map[string]*organization.Member)}
	for _, m := range members {
		s.members[memberKey(m.OrganizationID, m.UserID)] = m
	}
	return s
}

func (s *memberStore) Add(_ context.Context, m *organization.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey(m.OrganizationID, m.UserID)
	if _, ok := s.members[k]; ok {
		return organization.ErrMemberExists
	}
	cp := *m
	s.members[k] = &cp
	return nil
}

func (s *memberStore) Get(_ context.Context, org, user string) (*organization.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey(org, user)]
	if !ok {
		return nil, organization.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memberStore) List(_ context.Context, org string) ([]*organization.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*organization.Member
	for _, m := range s.members {
		if m.OrganizationID == org {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memberStore) UpdateRole(_ context.Context, org, user string, role authz.Role, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey(org, user)]
	if !ok {
		return organization.ErrMemberNotFound
	}
	m.Role = role
	m.UpdatedAt = at
	return nil
}

func (s *memberStore) Remove(_ context.Context, org, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey(org, user)
	if _, ok := s.members[k]; !ok {
		return organization.ErrMemberNotFound
	}
	delete(s.members, k)
	return nil
}

func (s *memberStore) CountOwners(_ context.Context, org string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.members {
		if m.OrganizationID == org && m.Role == authz.RoleOwner {
			n++
		}
	}
	return n, nil
}

type projectStore map[string]*organization.Project

func (s projectStore) GetByID(_ context.Context, id string) (*organization.Project, error) {
	p, ok := s[id]
	if !ok {
		return nil, organization.ErrProjectNotFound
	}
	return p, nil
}

func (s projectStore) ListByOrganization(_ context.Context, org string) ([]*organization.Project, error) {
	var out []*organization.Project
	for _, p := range s {
		if p.OrganizationID == org {
			out = append(out, p)
		}
	}
	return out, nil
}

type testCaseStore struct {
	mu       sync.Mutex
	cases    map[string]*testcase.TestCase
	comments []*testcase.Comment
}

func newTestCaseStore() *testCaseStore {
	return &testCaseStore{cases: make(map[string]*testcase.TestCase)}
}

func (s *testCaseStore) Create(_ context.Context, tc *testcase.TestCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[tc.ID] = tc
	return nil
}

func (s *testCaseStore) Get(_ context.Context, projectID, id string) (*testcase.TestCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.cases[id]
	if !ok || tc.ProjectID != projectID {
		return nil, testcase.ErrTestCaseNotFound
	}
	return tc, nil
}

func (s *testCaseStore) List(_ context.Context, projectID string) ([]*testcase.TestCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*testcase.TestCase
	for _, tc := range s.cases {
		if tc.ProjectID == projectID {
			out = append(out, tc)
		}
	}
	return out, nil
}

func (s *testCaseStore) Delete(_ context.Context, projectID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.cases[id]
	if !ok || tc.ProjectID != projectID {
		return testcase.ErrTestCaseNotFound
	}
	delete(s.cases, id)
	return nil
}

func (s *testCaseStore) AddComment(_ context.Context, c *testcase.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
	return nil
}

func (s *testCaseStore) ListComments(_ context.Context, testCaseID string) ([]*testcase.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*testcase.Comment
	for _, c := range s.comments {
		if c.TestCaseID == testCaseID {
			out = append(out, c)
		}
	}
	return out, nil
}

type activityStore struct {
	mu      sync.Mutex
	records []*activity.Record
}

func (s *activityStore) Append(_ context.Context, r *activity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *activityStore) all() []*activity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

type discardAudit struct{}

func (discardAudit) Log(context.Context, audit.Event) {}
