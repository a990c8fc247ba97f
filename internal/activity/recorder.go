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

// Package activity records the append-only trail of token-authenticated
// requests.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/opentrusty/qaguard/internal/id"
)

// Record is one row of the token activity trail. Records are never updated or
// deleted.
type Record struct {
	ID         string    `json:"id"`
	TokenID    string    `json:"token_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Resource   string    `json:"resource,omitempty"`
	Action     string    `json:"action,omitempty"`
	Allowed    bool      `json:"allowed"`
	Timestamp  time.Time `json:"timestamp"`
}

// RequestMeta is the request information copied into a record.
type RequestMeta struct {
	Method    string
	Path      string
	IPAddress string
	UserAgent string
}

// Store persists activity records.
type Store interface {
	Append(ctx context.Context, record *Record) error
}

// Submitter schedules background work. Satisfied by *worker.Pool.
type Submitter interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) bool
}

// Recorder writes activity records without blocking the caller.
type Recorder struct {
	store Store
	tasks Submitter
	now   func() time.Time
}

// NewRecorder creates a recorder that appends to store through tasks.
func NewRecorder(store Store, tasks Submitter) *Recorder {
	return &Recorder{
		store: store,
		tasks: tasks,
		now:   time.Now,
	}
}

// Record schedules one activity row. It returns immediately; write failures
// are logged by the worker pool and otherwise ignored.
func (r *Recorder) Record(ctx context.Context, tokenID string, meta RequestMeta, statusCode int, allowed bool, resource, action string) {
	if tokenID == "" {
		return
	}

	rec := &Record{
		ID:         id.NewULID(),
		TokenID:    tokenID,
		Method:     meta.Method,
		Path:       meta.Path,
		StatusCode: statusCode,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Resource:   resource,
		Action:     action,
		Allowed:    allowed,
		Timestamp:  r.now().UTC(),
	}

	r.tasks.Submit(ctx, "token_activity", func(ctx context.Context) error {
		if err := r.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append token activity: %w", err)
		}
		return nil
	})
}
