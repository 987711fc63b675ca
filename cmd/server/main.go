// Copyright 2026 The Ciguard Authors
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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ciguard/ciguard/docs"
	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/adminsource"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/authconfig"
	"github.com/ciguard/ciguard/internal/config"
	"github.com/ciguard/ciguard/internal/decision"
	"github.com/ciguard/ciguard/internal/observability/logger"
	"github.com/ciguard/ciguard/internal/observability/metrics"
	"github.com/ciguard/ciguard/internal/observability/tracing"
	"github.com/ciguard/ciguard/internal/permission"
	"github.com/ciguard/ciguard/internal/store/postgres"
	"github.com/ciguard/ciguard/internal/token"
	transportHTTP "github.com/ciguard/ciguard/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting ciguard decision engine")

	// Phase: CLI Commands
	if len(os.Args) > 1 && os.Args[1] == "bootstrap" {
		if err := runBootstrap(cfg); err != nil {
			fmt.Printf("Bootstrap failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Decision metrics stay nil when registration fails; every consumer
	// treats a nil bundle as a no-op.
	var decisionMetrics *metrics.DecisionMetrics
	if meter != nil {
		decisionMetrics, err = metrics.NewDecisionMetrics(meter)
		if err != nil {
			slog.Error("failed to register decision metrics", logger.Error(err))
		}
	}

	// Initialize database
	db, err := openDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	configRepo := postgres.NewConfigRepository(db)
	tokenRepo := postgres.NewAPITokenRepository(db)
	adminRepo := postgres.NewExternalAdminRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	hasher := token.NewSecretHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	catalog := permission.ServerCatalog()
	codec := acl.NewCodec(catalog)

	// Initialize services
	configService := authconfig.NewService(configRepo, codec, auditLogger, decisionMetrics)
	tokenService := token.NewService(
		tokenRepo,
		hasher,
		auditLogger,
		[]byte(cfg.Auth.JWTSecret),
		cfg.Auth.Issuer,
		cfg.Auth.SessionTTL,
	)
	decisionService := decision.NewService(configService, catalog, decisionMetrics, auditLogger)

	// Seed the first authorization strategy when the store is empty, then
	// load the active version. Decisions before Load would all come from
	// the deny-all default, so a failure here is fatal.
	configBootstrap := authconfig.NewBootstrapService(configService, catalog, auditLogger, cfg.Bootstrap.AdminUsernames)
	if err := configBootstrap.Bootstrap(ctx); err != nil {
		slog.Error("authorization bootstrap failed", logger.Error(err))
		os.Exit(1)
	}
	if err := configService.Load(ctx); err != nil {
		slog.Error("failed to load authorization configuration", logger.Error(err))
		os.Exit(1)
	}

	// Seed the first API token. Unlike the strategy this is not fatal: an
	// operator can still mint tokens over the database directly.
	tokenBootstrap := token.NewBootstrapService(tokenRepo, hasher, auditLogger, cfg.Bootstrap.Token)
	if err := tokenBootstrap.Bootstrap(ctx); err != nil {
		slog.Error("token bootstrap failed", logger.Error(err))
	}

	// Start external admin sync
	var syncer *adminsource.Syncer
	if cfg.AdminSource.URL != "" {
		source := adminsource.NewHTTPSource(cfg.AdminSource.URL, cfg.AdminSource.Token, cfg.AdminSource.Timeout)
		syncer = adminsource.NewSyncer(source, adminRepo, configService, auditLogger, decisionMetrics)
		syncer.Start(ctx)
		slog.Info("external admin sync started", logger.Component("adminsource"))
	} else {
		slog.Info("external admin sync disabled: no registry URL configured")
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		decisionService,
		configService,
		tokenService,
		adminRepo,
		catalog,
		auditLogger,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	if syncer != nil {
		syncer.Stop()
	}

	slog.Info("server stopped")
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	configRepo := postgres.NewConfigRepository(db)
	tokenRepo := postgres.NewAPITokenRepository(db)
	auditLogger := audit.NewSlogLogger()
	catalog := permission.ServerCatalog()
	codec := acl.NewCodec(catalog)
	hasher := token.NewSecretHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	configService := authconfig.NewService(configRepo, codec, auditLogger, nil)
	configBootstrap := authconfig.NewBootstrapService(configService, catalog, auditLogger, cfg.Bootstrap.AdminUsernames)
	if err := configBootstrap.Bootstrap(ctx); err != nil {
		return err
	}

	tokenBootstrap := token.NewBootstrapService(tokenRepo, hasher, auditLogger, cfg.Bootstrap.Token)
	return tokenBootstrap.Bootstrap(ctx)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
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
