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

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/paygate/internal/config"
	"github.com/telhawk-systems/paygate/internal/dlq"
	"github.com/telhawk-systems/paygate/internal/handlers"
	"github.com/telhawk-systems/paygate/internal/ingestclient"
	"github.com/telhawk-systems/paygate/internal/logging"
	"github.com/telhawk-systems/paygate/internal/ratelimit"
	"github.com/telhawk-systems/paygate/internal/server"
	"github.com/telhawk-systems/paygate/internal/service"
	"github.com/telhawk-systems/paygate/internal/signature"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("paygate"))
	logging.SetDefault(logger)

	slog.Info("Starting paygate",
		slog.Int("port", cfg.Server.Port),
		slog.String("webhook_path", cfg.Server.WebhookPath),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if cfgFile != "" {
		slog.Info("Loaded configuration", slog.String("config_path", cfgFile))
	}

	gw, err := newGateway(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("paygate listening", slog.String("addr", gw.server.Addr))
		if err := gw.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+cfg.Ingest.Timeout)
	defer cancel()

	if err := gw.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

// gateway is the assembled server plus the resources it owns.
type gateway struct {
	server  *http.Server
	closers []func() error
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			slog.Warn("cleanup failed", logging.Error(err))
		}
	}
}

// newGateway wires the HTTP server from cfg. Missing secrets abort unless
// fail_fast is off, in which case the server starts degraded.
func newGateway(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*gateway, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	gw := &gateway{}

	secrets, secretsErr := cfg.Secrets()
	if secretsErr != nil {
		if cfg.Server.FailFast {
			return nil, secretsErr
		}
		logger.Error("required secret missing; serving in degraded mode", logging.Error(secretsErr))
	}

	// Initialize rate limiter
	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled {
		l, err := ratelimit.NewRedisRateLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			logger.Warn("failed to initialize redis rate limiter; continuing without rate limiting", logging.Error(err))
		} else {
			limiter = l
			logger.Info("rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window),
			)
		}
	}
	gw.closers = append(gw.closers, limiter.Close)

	// Initialize failure records
	var failures dlq.Writer
	if cfg.DLQ.Enabled {
		switch cfg.DLQ.Backend {
		case dlq.BackendJetStream:
			q, err := dlq.DialJetStream(ctx, cfg.DLQ.NatsURL, logger)
			if err != nil {
				gw.Close()
				return nil, fmt.Errorf("initialize jetstream dlq: %w", err)
			}
			failures = q
			logger.Info("dlq enabled", slog.String("backend", dlq.BackendJetStream), slog.String("nats_url", cfg.DLQ.NatsURL))
		case dlq.BackendFile, "":
			q, err := dlq.NewFileQueue(cfg.DLQ.BasePath, logger)
			if err != nil {
				gw.Close()
				return nil, fmt.Errorf("initialize file dlq: %w", err)
			}
			failures = q
			logger.Info("dlq enabled", slog.String("backend", dlq.BackendFile), slog.String("path", cfg.DLQ.BasePath))
		default:
			gw.Close()
			return nil, fmt.Errorf("unknown dlq backend: %s (supported: file, jetstream)", cfg.DLQ.Backend)
		}
		gw.closers = append(gw.closers, failures.Close)
	}

	verifier := signature.NewVerifier(secrets.WebhookSecret, cfg.Webhook.Tolerance)
	client := ingestclient.New(secrets.IngestURL, cfg.Ingest.RPCPath, secrets.IngestServiceKey, cfg.Ingest.Timeout)

	opts := []service.Option{
		service.WithProcessor(cfg.Webhook.Processor),
		service.WithForwardTimeout(cfg.Ingest.Timeout),
		service.WithLogger(logger),
	}
	if failures != nil {
		opts = append(opts, service.WithDLQ(failures))
	}
	gatewayService := service.NewGatewayService(verifier, client, opts...)

	webhookOpts := []handlers.WebhookOption{
		handlers.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		handlers.WithHandlerLogger(logger),
	}
	if secretsErr != nil {
		webhookOpts = append(webhookOpts, handlers.WithSecretsError(secretsErr))
	}

	healthOpts := []handlers.HealthOption{}
	if failures != nil {
		healthOpts = append(healthOpts, handlers.WithDLQStats(failures))
	}

	var webhookMiddleware func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		webhookMiddleware = ratelimit.Middleware(limiter, logger)
	}

	router := server.NewRouter(server.Routes{
		WebhookPath:       cfg.Server.WebhookPath,
		Webhook:           handlers.NewWebhookHandler(gatewayService, webhookOpts...),
		Health:            handlers.NewHealthHandler(version, secretsErr, healthOpts...),
		WebhookMiddleware: webhookMiddleware,
	})

	gw.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return gw, nil
}
