// @title QAGuard API
// @version 1.0.0
// @description Access control for the test management platform: API tokens, memberships and guarded test artifacts.

// @contact.name API Support
// @contact.url https://github.com/opentrusty/qaguard/issues

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name qaguard_session

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/qaguard/internal/activity"
	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/observability/logger"
	"github.com/opentrusty/qaguard/internal/observability/metrics"
	"github.com/opentrusty/qaguard/internal/organization"
	"github.com/opentrusty/qaguard/internal/session"
	"github.com/opentrusty/qaguard/internal/testcase"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenValidator authenticates bearer credentials.
type TokenValidator interface {
	Validate(ctx context.Context, raw string, client apitoken.ClientInfo) (*authz.Actor, error)
}

// SessionResolver verifies session cookies.
type SessionResolver interface {
	Resolve(ctx context.Context, credential string) (*session.Session, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tokens           TokenValidator
	sessions         SessionResolver
	evaluator        *authz.Evaluator
	tokenService     *apitoken.Service
	orgService       *organization.Service
	testCaseService  *testcase.Service
	activityRecorder *activity.Recorder
	cookieName       string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	tokens TokenValidator,
	sessions SessionResolver,
	evaluator *authz.Evaluator,
	tokenService *apitoken.Service,
	orgService *organization.Service,
	testCaseService *testcase.Service,
	activityRecorder *activity.Recorder,
	cookieName string,
) *Handler {
	return &Handler{
		tokens:           tokens,
		sessions:         sessions,
		evaluator:        evaluator,
		tokenService:     tokenService,
		orgService:       orgService,
		testCaseService:  testCaseService,
		activityRecorder: activityRecorder,
		cookieName:       cookieName,
	}
}

// RouterOption configures NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	trustProxyHeaders bool
}

// WithTrustedProxyHeaders takes the client address from True-Client-IP,
// X-Real-IP or X-Forwarded-For instead of the peer address.
func WithTrustedProxyHeaders(trust bool) RouterOption {
	return func(o *routerOptions) { o.trustProxyHeaders = trust }
}

// NewRouter creates a new HTTP router. rateLimiter and collector may be nil.
func NewRouter(h *Handler, rateLimiter *RateLimiter, collector *metrics.HTTPCollector, opts ...RouterOption) *chi.Mux {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if o.trustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	if collector != nil {
		r.Use(collector.Middleware)
	}
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)
	r.Get("/swagger/doc.json", SwaggerDoc)
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.TokenActivityMiddleware)

		r.Get("/me", h.GetCurrentActor)

		// Token management stays with interactive users.
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Route("/organizations/{orgID}/tokens", func(r chi.Router) {
				r.Post("/", h.CreateToken)
				r.Get("/", h.ListTokens)
				r.Get("/pending", h.ListPendingTokens)
				r.Post("/{tokenID}/approve", h.ApproveToken)
				r.Post("/{tokenID}/reject", h.RejectToken)
			})
			r.Delete("/tokens/{tokenID}", h.RevokeToken)
		})

		r.Route("/organizations/{orgID}/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.AddMember)
			r.Patch("/{userID}", h.ChangeMemberRole)
			r.Delete("/{userID}", h.RemoveMember)
		})

		r.Get("/organizations/{orgID}/projects", h.ListProjects)

		r.Route("/projects/{projectID}/test-cases", func(r chi.Router) {
			r.Post("/", h.CreateTestCase)
			r.Get("/", h.ListTestCases)
			r.Get("/{testCaseID}", h.GetTestCase)
			r.Delete("/{testCaseID}", h.DeleteTestCase)
			r.Post("/{testCaseID}/comments", h.AddComment)
			r.Get("/{testCaseID}/comments", h.ListComments)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "qaguard",
	})
}

// SwaggerDoc serves the registered OpenAPI document.
func SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// CurrentActorResponse describes the authenticated caller
type CurrentActorResponse struct {
	Kind           string   `json:"kind" example:"token"`
	UserID         string   `json:"user_id" example:"0190f5c2-0000-7000-8000-000000000001"`
	OrganizationID string   `json:"organization_id,omitempty" example:"org-1"`
	TokenID        string   `json:"token_id,omitempty"`
	ScopeType      string   `json:"scope_type,omitempty" example:"personal"`
	Permissions    []string `json:"permissions,omitempty"`
	ProjectIDs     []string `json:"project_ids,omitempty"`
}

// GetCurrentActor returns the authenticated caller
// @Summary Current Actor
// @Description Returns the identity and, for tokens, the grants of the caller
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Success 200 {object} CurrentActorResponse
// @Failure 401 {object} map[string]string
// @Router /me [get]
func (h *Handler) GetCurrentActor(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())

	resp := CurrentActorResponse{
		Kind:           string(actor.Kind),
		UserID:         actor.UserID,
		OrganizationID: actor.OrganizationID,
	}
	if actor.IsToken() {
		resp.TokenID = actor.TokenID
		resp.ScopeType = string(actor.ScopeType)
		resp.ProjectIDs = actor.ProjectScopes
		for _, p := range actor.Permissions.List() {
			resp.Permissions = append(resp.Permissions, p.String())
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// authorizeOrganization runs the evaluator against an organization-level
// target.
func (h *Handler) authorizeOrganization(w http.ResponseWriter, r *http.Request, orgID string, req authz.Requirement) (*authz.Actor, bool) {
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.evaluator.Authorize(r.Context(), actor, authz.Target{OrganizationID: orgID}, req); err != nil {
		respondAuthzError(w, r, err)
		return nil, false
	}
	return actor, true
}

// authorizeProject resolves the project's organization and runs the
// evaluator. An unknown project has no organization and is refused as a
// mismatch, so callers cannot enumerate project ids.
func (h *Handler) authorizeProject(w http.ResponseWriter, r *http.Request, projectID string, req authz.Requirement) (*authz.Actor, bool) {
	target := authz.Target{ProjectID: projectID}

	project, err := h.orgService.GetProject(r.Context(), projectID)
	switch {
	case err == nil:
		target.OrganizationID = project.OrganizationID
	case errors.Is(err, organization.ErrProjectNotFound):
	default:
		respondAuthzError(w, r, err)
		return nil, false
	}

	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.evaluator.Authorize(r.Context(), actor, target, req); err != nil {
		respondAuthzError(w, r, err)
		return nil, false
	}
	return actor, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAuthzError maps domain errors to responses. Every Forbidden variant
// produces the same body.
func respondAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	var escalation *apitoken.EscalationError
	switch {
	case errors.As(err, &escalation):
		invalid := make([]string, len(escalation.Invalid))
		for i, p := range escalation.Invalid {
			invalid[i] = p.String()
		}
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":               "forbidden",
			"invalid_permissions": invalid,
		})
	case errors.Is(err, authz.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, authz.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apitoken.ErrTokenNotFound),
		errors.Is(err, organization.ErrMemberNotFound),
		errors.Is(err, organization.ErrProjectNotFound),
		errors.Is(err, testcase.ErrTestCaseNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apitoken.ErrInvalidRequest),
		errors.Is(err, authz.ErrInvalidPermission),
		errors.Is(err, organization.ErrInvalidRole),
		errors.Is(err, testcase.ErrInvalidTestCase):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apitoken.ErrNotPending),
		errors.Is(err, organization.ErrLastOwner),
		errors.Is(err, organization.ErrMemberExists):
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.UserID(GetUserID(r.Context())),
			logger.TokenID(GetTokenID(r.Context())),
			logger.SessionID(GetSessionID(r.Context())),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// getIPAddress returns the peer address without its port. Forwarding headers
// are honoured only through middleware.RealIP, which rewrites RemoteAddr.
func getIPAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
