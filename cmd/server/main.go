// Copyright 2026 The Uitsmijter Authors
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

	"github.com/uitsmijter/uitsmijter/internal/audit"
	"github.com/uitsmijter/uitsmijter/internal/config"
	"github.com/uitsmijter/uitsmijter/internal/flow"
	"github.com/uitsmijter/uitsmijter/internal/observability/logger"
	"github.com/uitsmijter/uitsmijter/internal/observability/metrics"
	"github.com/uitsmijter/uitsmijter/internal/observability/tracing"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/store/memory"
	"github.com/uitsmijter/uitsmijter/internal/store/postgres"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"github.com/uitsmijter/uitsmijter/internal/token"
	transportHTTP "github.com/uitsmijter/uitsmijter/internal/transport/http"
	"github.com/uitsmijter/uitsmijter/internal/validator"
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
	slog.Info("starting uitsmijter authorization server")

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

	// Initialize meter; audit events double as the metric source.
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	auditLog := metrics.NewAuditRecorder(meter, audit.NewSlogLogger())

	// Token signer: RS256 when a key file is configured, HS256 otherwise.
	signer, err := newSigner(cfg)
	if err != nil {
		slog.Error("failed to initialize token signer", logger.Error(err))
		os.Exit(1)
	}

	// Tenant registry
	registry := tenant.NewRegistry()
	if err := loadTenants(ctx, cfg, registry); err != nil {
		slog.Error("failed to load tenants", logger.Error(err))
		os.Exit(1)
	}

	// Stores and session manager
	codes := memory.NewCodeStore()
	refresh := memory.NewRefreshStore()
	sessions := session.NewManager(signer, cfg.Server.SecureCookies)

	engine := flow.NewEngine(flow.Options{
		Registry: registry,
		Validators: validator.NewConfigProvider(validator.GuardConfig{
			Timeout:        cfg.Validator.Timeout,
			MaxConcurrency: cfg.Validator.MaxConcurrency,
		}),
		Codes:    codes,
		Refresh:  refresh,
		Sessions: sessions,
		Signer:   signer,
		Audit:    auditLog,
		HashAlg:  cfg.Issuer.ResponsibilityHashAlg,
	})

	router := transportHTTP.NewRouter(
		transportHTTP.NewHandler(engine, nil),
		transportHTTP.RouterConfig{
			RequestTimeout:    cfg.Server.RequestTimeout,
			LoginRPS:          cfg.RateLimit.RequestsPerSecond,
			LoginBurst:        cfg.RateLimit.Burst,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		},
	)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Sweep expired codes and refresh tokens
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := codes.DeleteExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to sweep expired codes", logger.Error(err))
			}
			if err := refresh.DeleteExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to sweep expired refresh tokens", logger.Error(err))
			}
		}
	}()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func newSigner(cfg *config.Config) (*token.Signer, error) {
	if cfg.Issuer.RSAKeyPath != "" {
		keyPEM, err := os.ReadFile(cfg.Issuer.RSAKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read RSA key: %w", err)
		}
		return token.NewRSASigner(cfg.Issuer.URL, keyPEM)
	}
	return token.NewSigner(cfg.Issuer.URL, []byte(cfg.Issuer.JWTSecret))
}

// loadTenants fills the registry from the configured source and keeps it
// fresh: YAML directories are watched via fsnotify, the database is polled
// on the reload interval.
func loadTenants(ctx context.Context, cfg *config.Config, registry *tenant.Registry) error {
	switch cfg.Tenants.Source {
	case "postgres":
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		source := postgres.NewSnapshotSource(db)
		snap, err := source.LoadSnapshot(ctx)
		if err != nil {
			return err
		}
		registry.Swap(snap)

		go func() {
			ticker := time.NewTicker(cfg.Tenants.ReloadInterval)
			defer ticker.Stop()
			for range ticker.C {
				snap, err := source.LoadSnapshot(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "failed to reload tenants", logger.Error(err))
					continue
				}
				registry.Swap(snap)
			}
		}()
		return nil

	default:
		snap, err := tenant.LoadDir(cfg.Tenants.Dir)
		if err != nil {
			return err
		}
		registry.Swap(snap)

		go func() {
			if err := tenant.Watch(ctx, cfg.Tenants.Dir, registry); err != nil {
				slog.ErrorContext(ctx, "tenant watcher stopped", logger.Error(err))
			}
		}()
		return nil
	}
}
