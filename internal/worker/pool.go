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

// Package worker runs fire-and-forget side effects off the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opentrusty/qaguard/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned by Close when the pool was already closed.
var ErrClosed = errors.New("worker pool closed")

// Config holds pool sizing.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type job struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
}

// Pool executes submitted tasks on a fixed number of goroutines. Submission
// never blocks; when the queue is full the task is dropped.
type Pool struct {
	jobs    chan job
	timeout time.Duration
	dropped metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts the workers. dropped may be nil.
func NewPool(cfg Config, dropped metric.Int64Counter) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Second
	}

	p := &Pool{
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.TaskTimeout,
		dropped: dropped,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues fn. The task runs with ctx's values but not its
// cancellation, so it outlives the request that scheduled it. It reports
// false when the task was dropped.
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(ctx, name, "closed")
		return false
	}

	select {
	case p.jobs <- job{ctx: context.WithoutCancel(ctx), name: name, fn: fn}:
		return true
	default:
		p.drop(ctx, name, "queue_full")
		return false
	}
}

// Close stops intake and waits for queued tasks to finish or ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, j.name, "panic", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := j.fn(ctx); err != nil {
		p.fail(ctx, j.name, "error", err)
	}
}

func (p *Pool) fail(ctx context.Context, name, errType string, err error) {
	slog.WarnContext(ctx, "background task failed",
		logger.Component("worker"),
		logger.Task(name),
		logger.ErrorType(errType),
		logger.Error(err),
	)
	if p.dropped != nil {
		p.dropped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task", name),
			attribute.String("cause", errType),
		))
	}
}

func (p *Pool) drop(ctx context.Context, name, cause string) {
	slog.WarnContext(ctx, "background task dropped",
		logger.Component("worker"),
		logger.Task(name),
		slog.String("cause", cause),
	)
	if p.dropped != nil {
		p.dropped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task", name),
			attribute.String("cause", cause),
		))
	}
}
