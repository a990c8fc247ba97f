package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/qaguard/internal/authz"
)

// CreateTestCaseRequest represents test case creation data
type CreateTestCaseRequest struct {
	Title       string `json:"title" binding:"required" example:"Checkout with saved card"`
	Description string `json:"description" example:"1. Add item 2. Pay"`
}

// CommentRequest represents comment data
type CommentRequest struct {
	Body string `json:"body" binding:"required" example:"Fails on Safari"`
}

// CreateTestCase creates a test case in a project
// @Summary Create Test Case
// @Tags TestCases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Param request body CreateTestCaseRequest true "Test Case Data"
// @Success 201 {object} testcase.TestCase
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /projects/{projectID}/test-cases [post]
func (h *Handler) CreateTestCase(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	actor, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceTestCase, Action: authz.ActionCreate, MinRole: authz.RoleMember,
	})
	if !ok {
		return
	}

	var req CreateTestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tc, err := h.testCaseService.Create(r.Context(), projectID, actor.UserID, req.Title, req.Description)
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tc)
}

// ListTestCases lists a project's test cases
// @Summary List Test Cases
// @Tags TestCases
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Success 200 {array} testcase.TestCase
// @Failure 403 {object} map[string]string
// @Router /projects/{projectID}/test-cases [get]
func (h *Handler) ListTestCases(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceTestCase, Action: authz.ActionRead, MinRole: authz.RoleViewer,
	}); !ok {
		return
	}

	items, err := h.testCaseService.List(r.Context(), projectID)
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

// GetTestCase returns one test case
// @Summary Get Test Case
// @Tags TestCases
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Param testCaseID path string true "Test Case ID"
// @Success 200 {object} testcase.TestCase
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /projects/{projectID}/test-cases/{testCaseID} [get]
func (h *Handler) GetTestCase(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceTestCase, Action: authz.ActionRead, MinRole: authz.RoleViewer,
	}); !ok {
		return
	}

	tc, err := h.testCaseService.Get(r.Context(), projectID, chi.URLParam(r, "testCaseID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tc)
}

// DeleteTestCase deletes a test case
// @Summary Delete Test Case
// @Tags TestCases
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Param testCaseID path string true "Test Case ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /projects/{projectID}/test-cases/{testCaseID} [delete]
func (h *Handler) DeleteTestCase(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceTestCase, Action: authz.ActionDelete, MinRole: authz.RoleAdmin,
	}); !ok {
		return
	}

	if err := h.testCaseService.Delete(r.Context(), projectID, chi.URLParam(r, "testCaseID")); err != nil {
		respondAuthzError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddComment comments on a test case
// @Summary Add Comment
// @Tags TestCases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Param testCaseID path string true "Test Case ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} testcase.Comment
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /projects/{projectID}/test-cases/{testCaseID}/comments [post]
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	actor, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceComment, Action: authz.ActionCreate, MinRole: authz.RoleMember,
	})
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.testCaseService.AddComment(r.Context(), projectID, chi.URLParam(r, "testCaseID"), actor.UserID, req.Body)
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// ListComments lists a test case's comments
// @Summary List Comments
// @Tags TestCases
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param projectID path string true "Project ID"
// @Param testCaseID path string true "Test Case ID"
// @Success 200 {array} testcase.Comment
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /projects/{projectID}/test-cases/{testCaseID}/comments [get]
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, ok := h.authorizeProject(w, r, projectID, authz.Requirement{
		Resource: authz.ResourceComment, Action: authz.ActionRead, MinRole: authz.RoleViewer,
	}); !ok {
		return
	}

	comments, err := h.testCaseService.ListComments(r.Context(), projectID, chi.URLParam(r, "testCaseID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(comments))
}
