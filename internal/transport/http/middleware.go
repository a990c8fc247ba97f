// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/qaguard/internal/activity"
	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware resolves the request's actor.
//
// A request carrying an Authorization header is authenticated by bearer
// token only; a failed token never falls back to the session cookie.
// Without the header the session cookie is used. The resolved actor and a
// fresh decision trail are stored in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var actor *authz.Actor
		if header := r.Header.Get("Authorization"); header != "" {
			raw, ok := bearerCredential(header)
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			a, err := h.tokens.Validate(ctx, raw, apitoken.ClientInfo{IPAddress: getIPAddress(r)})
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			actor = a
		} else {
			cookie, err := r.Cookie(h.cookieName)
			if err != nil || cookie.Value == "" {
				respondError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			sess, err := h.sessions.Resolve(ctx, cookie.Value)
			if err != nil {
				slog.DebugContext(ctx, "session rejected", logger.Error(err))
				respondError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			actor = &authz.Actor{
				Kind:           authz.ActorSession,
				UserID:         sess.UserID,
				OrganizationID: sess.OrganizationID,
				SessionHandle:  sess.ID,
			}
		}

		ctx = authz.ContextWithActor(ctx, actor)
		ctx, _ = authz.WithDecisionTrail(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenActivityMiddleware appends one activity record per token-authenticated
// request once the handler has finished. The record carries the route's
// authorization decision, or status < 400 when the route made none.
func (h *Handler) TokenActivityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := authz.ActorFromContext(r.Context())
		if !ok || !actor.IsToken() || h.activityRecorder == nil {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		allowed := status < http.StatusBadRequest
		var resource, action string
		if trail := authz.DecisionTrailFromContext(r.Context()); trail != nil {
			if d, ok := trail.Last(); ok {
				allowed = d.Allowed
				resource = string(d.Resource)
				action = string(d.Action)
			}
		}

		h.activityRecorder.Record(r.Context(), actor.TokenID, activity.RequestMeta{
			Method:    r.Method,
			Path:      r.URL.Path,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
		}, status, allowed, resource, action)
	})
}

// RequireSession refuses token actors.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := authz.ActorFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if actor.IsToken() {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerCredential(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
