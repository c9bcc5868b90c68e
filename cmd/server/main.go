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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verigate/internal/income/handler"
	incomemetrics "verigate/internal/income/metrics"
	"verigate/internal/income/providers/buro"
	"verigate/internal/income/service"
	"verigate/internal/platform/config"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	"verigate/internal/platform/metrics"
	"verigate/internal/platform/middleware"
	"verigate/pkg/platform/middleware/metadata"
	"verigate/pkg/platform/middleware/requesttime"
)

// maxWebhookBody bounds inbound delivery size.
const maxWebhookBody = 1 << 20

// main wires dependencies, exposes the HTTP router, and owns the server
// lifecycle. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("verigate exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	pipelineMetrics := incomemetrics.New(reg)

	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	upstream, err := buro.New(buro.Config{
		BaseURL:        cfg.Buro.BaseURL,
		APIKey:         cfg.Buro.APIKey,
		Sandbox:        cfg.Buro.Sandbox,
		ConnectTimeout: cfg.Buro.ConnectTimeout,
		RequestTimeout: cfg.Buro.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("build upstream client: %w", err)
	}

	svc, err := service.New(upstream, infra.stores, infra.locker,
		service.WithLogger(log),
		service.WithAuditPublisher(infra.audit),
		service.WithMetrics(pipelineMetrics),
	)
	if err != nil {
		return fmt.Errorf("build reconciliation service: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(middleware.Logger(log, httpMetrics))
	router.Use(middleware.MaxBody(maxWebhookBody))

	handler.New(svc, log).Register(router)
	router.Get("/health", infra.HandleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting verigate", "addr", cfg.Server.Addr, "env", cfg.Server.Env, "sandbox", cfg.Buro.Sandbox)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
