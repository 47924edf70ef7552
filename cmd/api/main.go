// Package main is the entry point for the billingsync API.
//
// It loads configuration, constructs the shared clients once (Postgres pool,
// Stripe client, optional Redis and CloudWatch), wires the handlers onto the
// core chassis and serves either a plain HTTP listener or, inside AWS Lambda,
// API Gateway events.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"

	"billingsync/internal/api/handlers"
	"billingsync/internal/auth"
	"billingsync/internal/cache"
	"billingsync/internal/config"
	"billingsync/internal/core"
	"billingsync/internal/db"
	"billingsync/internal/external"
	"billingsync/internal/pricing"
	"billingsync/internal/reconcile"
	"billingsync/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// dependencies are the process-wide clients. Optional ones are nil when
// disabled by configuration.
type dependencies struct {
	DB           db.DBTX
	Redis        cache.Store
	HTTPClient   *http.Client
	CloudWatch   core.CloudWatchClient
	HealthProbes []core.HealthProbe
}

func run() error {
	ctx := context.Background()

	var provider config.SecretProvider = config.NewEnvVarProvider()
	if os.Getenv("APP_ENV") != "local" {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		provider = config.NewSSMProvider(region, os.Getenv("AWS_ENDPOINT_URL"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("billingsync API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Outbound Stripe calls carry no client timeout; they inherit the
	// request context deadline.
	deps := dependencies{
		DB:           pool,
		HTTPClient:   &http.Client{},
		HealthProbes: []core.HealthProbe{db.PoolProbe{Pool: pool}},
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return fmt.Errorf("configuring redis: %w", err)
	}
	if redisClient != nil {
		deps.Redis = redisClient
		deps.HealthProbes = append(deps.HealthProbes, cache.RedisProbe{Client: redisClient})
	}

	if cfg.Observability.MetricsEnabled {
		cw, err := newCloudWatchClient(ctx, cfg.AWS)
		if err != nil {
			pool.Close()
			return fmt.Errorf("configuring cloudwatch: %w", err)
		}
		deps.CloudWatch = cw
	}

	srv, err := buildServer(cfg, logger, deps)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})
	if redisClient != nil {
		srv.OnShutdown(redisClient.Close)
	}

	if isLambdaEnvironment() {
		logger.Info("starting in Lambda mode")
		lambda.Start(core.NewLambdaAdapter(srv.Handler()).Handle)
		return nil
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires repositories, the Stripe client, the webhook router and
// the handlers onto a new core.Server with routes mounted.
func buildServer(cfg *config.Config, logger *slog.Logger, deps dependencies) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.HealthProbes = deps.HealthProbes
	srv.Authenticator = auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, logger)

	var recorder webhook.OutcomeRecorder
	if deps.CloudWatch != nil {
		metrics := core.NewCloudWatchMetrics(deps.CloudWatch, cfg.Observability.MetricNamespace, logger)
		srv.Metrics = metrics
		recorder = metrics
	}

	customers := db.NewCustomerRepo(deps.DB, logger)
	subscriptions := db.NewSubscriptionRepo(deps.DB, logger)

	stripeClient := external.NewStripeClient(deps.HTTPClient, customers, external.StripeClientConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		BaseURL:    cfg.Stripe.BaseURL,
		MaxRetries: cfg.Stripe.MaxRetries,
		Logger:     logger,
	})
	catalog := cache.NewCatalogCache(deps.Redis, stripeClient, cfg.Redis.CatalogTTL, logger)

	router := webhook.NewRouter(recorder, logger)
	reconcile.New(subscriptions, stripeClient, logger).Register(router)
	catalog.Register(router)
	logger.Info("webhook router configured", "event_types", router.EventTypes())

	renderer, err := pricing.NewRenderer()
	if err != nil {
		return nil, err
	}

	webhookHandler := handlers.NewStripeWebhookHandler(webhook.StripeVerifier{}, router, cfg.Stripe.WebhookSecret, logger)
	checkoutHandler := handlers.NewCheckoutHandler(catalog, stripeClient, srv.Validator, cfg.Server.SiteURL, logger)
	portalHandler := handlers.NewPortalHandler(customers, stripeClient, srv.Validator, cfg.Server.SiteURL, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptions, logger)
	pricingHandler := handlers.NewPricingHandler(catalog, subscriptions, renderer, cfg.Stripe.PublishableKey, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		webhookHandler.RegisterRoutes,
		checkoutHandler.RegisterRoutes,
		portalHandler.RegisterRoutes,
		subscriptionHandler.RegisterRoutes,
		pricingHandler.RegisterRoutes,
		func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/pricing", http.StatusFound)
			})
		},
	)

	srv.MountRoutes()
	return srv, nil
}

func newCloudWatchClient(ctx context.Context, cfg config.AWSConfig) (*cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	}), nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
