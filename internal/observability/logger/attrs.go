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

package logger

import "log/slog"

// Common attribute keys for consistent logging across the application

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func UserAgent(ua string) slog.Attr {
	return slog.String("user_agent", ua)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Actor attributes
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func ActorKind(kind string) slog.Attr {
	return slog.String("actor_kind", kind)
}

// TokenID logs the token's record id. Never pass the raw credential here.
func TokenID(id string) slog.Attr {
	return slog.String("token_id", id)
}

func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

// Tenancy attributes
func OrganizationID(id string) slog.Attr {
	return slog.String("organization_id", id)
}

func ProjectID(id string) slog.Attr {
	return slog.String("project_id", id)
}

// Authorization attributes
func Resource(resource string) slog.Attr {
	return slog.String("resource", resource)
}

func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func ErrorType(errType string) slog.Attr {
	return slog.String("error_type", errType)
}

// Background work attributes
func Task(name string) slog.Attr {
	return slog.String("task", name)
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}

// String creates a generic string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}
