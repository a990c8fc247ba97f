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
	"context"

	"github.com/opentrusty/qaguard/internal/authz"
)

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if actor, ok := authz.ActorFromContext(ctx); ok {
		return actor.UserID
	}
	return ""
}

// GetTokenID retrieves the API token ID from context, or "" for session actors.
func GetTokenID(ctx context.Context) string {
	if actor, ok := authz.ActorFromContext(ctx); ok && actor.IsToken() {
		return actor.TokenID
	}
	return ""
}

// GetSessionID retrieves the Session ID from context.
func GetSessionID(ctx context.Context) string {
	if actor, ok := authz.ActorFromContext(ctx); ok && !actor.IsToken() {
		return actor.SessionHandle
	}
	return ""
}
