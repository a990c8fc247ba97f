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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opentrusty/qaguard/internal/activity"
	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/config"
	_ "github.com/opentrusty/qaguard/internal/docs"
	"github.com/opentrusty/qaguard/internal/observability/logger"
	"github.com/opentrusty/qaguard/internal/observability/metrics"
	"github.com/opentrusty/qaguard/internal/observability/tracing"
	"github.com/opentrusty/qaguard/internal/organization"
	"github.com/opentrusty/qaguard/internal/session"
	"github.com/opentrusty/qaguard/internal/store/postgres"
	"github.com/opentrusty/qaguard/internal/testcase"
	transportHTTP "github.com/opentrusty/qaguard/internal/transport/http"
	"github.com/opentrusty/qaguard/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		DisableOTel: !cfg.Observability.OTELEnabled,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	slog.Info("starting qaguard access control service")
	if err := run(cfg, log); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.Background())
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	instruments, err := meter.NewInstruments()
	if err != nil {
		return fmt.Errorf("failed to register instruments: %w", err)
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	tokenRepo := postgres.NewAPITokenRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	testCaseRepo := postgres.NewTestCaseRepository(db)
	activityRepo := postgres.NewActivityRepository(db)

	// Background side effects: last-used updates and the activity trail
	pool := worker.NewPool(worker.Config{
		Workers:     cfg.Token.Workers,
		QueueSize:   cfg.Token.QueueSize,
		TaskTimeout: cfg.Token.TaskTimeout,
	}, instruments.DroppedTasks)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger(log)
	codec := apitoken.NewCodec(cfg.Token.Product)
	hasher := apitoken.NewSecretHasher(apitoken.HasherConfig{
		Memory:      cfg.Security.Argon2Memory,
		Iterations:  cfg.Security.Argon2Iterations,
		Parallelism: cfg.Security.Argon2Parallelism,
		SaltLength:  cfg.Security.Argon2SaltLength,
		KeyLength:   cfg.Security.Argon2KeyLength,
	})

	// Initialize services
	orgService := organization.NewService(memberRepo, projectRepo, auditLogger)
	evaluator := authz.NewEvaluator(orgService,
		authz.WithAuditLogger(logger.NewAuditLogger(log)),
		authz.WithDecisionCounter(instruments.Decisions),
	)
	validator := apitoken.NewValidator(codec, tokenRepo, tokenRepo, hasher, pool,
		apitoken.WithValidationMetrics(instruments.TokenValidations, instruments.VerifyDuration),
	)
	tokenService := apitoken.NewService(tokenRepo, orgService, orgService, codec, hasher, auditLogger)
	testCaseService := testcase.NewService(testCaseRepo)
	recorder := activity.NewRecorder(activityRepo, pool)
	sessions := session.NewJWTResolver([]byte(cfg.Session.SigningKey), cfg.Session.Issuer)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx)

	var collector *metrics.HTTPCollector
	if cfg.Observability.MetricsEnabled {
		collector = metrics.NewHTTPCollector()
	}

	handler := transportHTTP.NewHandler(
		validator,
		sessions,
		evaluator,
		tokenService,
		orgService,
		testCaseService,
		recorder,
		cfg.Session.CookieName,
	)
	router := transportHTTP.NewRouter(handler, rateLimiter, collector,
		transportHTTP.WithTrustedProxyHeaders(cfg.Server.TrustProxyHeaders),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	// Drain activity writes after the last request has finished.
	if err := pool.Close(shutdownCtx); err != nil {
		slog.Error("worker pool drain incomplete", logger.Error(err))
	}
	return nil
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: 1,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
