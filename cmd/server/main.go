package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/metrics"
	"github.com/benvon/smart-reminders/internal/middleware"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/estimator"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "smart-reminders-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including estimator prompts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	if *debugFlag {
		cfg.ServerDebugMode = true
	}

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("estimator", cfg.Estimator),
		zap.String("ai_model", cfg.AIModel),
		zap.String("reminder_timezone", cfg.ReminderTimezone),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:     cfg.OTELEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTELEndpoint,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		shutdownTracing = nil
	}
	if shutdownTracing != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisClient, err := connectRedis(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	} else {
		zapLogger.Warn("redis_not_configured_using_in_memory_stores")
	}

	jobQueue, err := queue.ConnectRabbitMQ(context.Background(), cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid_reminder_timezone", zap.Error(err))
	}

	var cache estimator.Cache
	if redisClient != nil {
		cache = estimator.NewRedisCache(redisClient, cfg.EstimateCacheTTL)
	} else {
		cache = estimator.NewMemoryCache(cfg.EstimateCacheSize, cfg.EstimateCacheTTL)
	}
	est, err := estimator.Build(cfg.Estimator, cfg.EstimatorConfig(), cache, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_estimator", zap.Error(err))
	}

	var recorder *metrics.Metrics
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	orchestratorOpts := []reminder.Option{reminder.WithLogger(zapLogger)}
	if recorder != nil {
		orchestratorOpts = append(orchestratorOpts, reminder.WithRecorder(recorder))
	}
	orchestrator := reminder.NewOrchestrator(parser.New(parser.WithLocation(loc)), est, orchestratorOpts...)

	reminderRepo := database.NewReminderRepository(db)

	scheduleHandler := handlers.NewScheduleHandler(cfg.BatchConcurrency, zapLogger)
	planHandler := handlers.NewPlanHandler(orchestrator, zapLogger)
	reminderHandler := handlers.NewReminderHandler(reminderRepo, jobQueue, orchestrator, zapLogger)
	healthChecker := handlers.NewHealthChecker().
		AddCheck("database", db.HealthCheck).
		AddCheck("queue", jobQueue.HealthCheck)
	if redisClient != nil {
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	rateLimitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateLimitStore, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order: the first one wraps all others
	if cfg.OTELEnabled && shutdownTracing != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL, zapLogger))
	r.Use(middleware.MaxRequestSize(cfg.MaxRequestBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes, not rate limited
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler()).Methods("GET")
	}
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)
	scheduleHandler.RegisterRoutes(apiRouter.PathPrefix("/schedules").Subrouter())
	planHandler.RegisterRoutes(apiRouter)
	reminderHandler.RegisterRoutes(apiRouter.PathPrefix("/reminders").Subrouter())

	// Preflight requests are answered by the CORS middleware before reaching this
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, cfg.DLQRetention, zapLogger)
	go func() {
		if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()
	zapLogger.Info("started_dlq_garbage_collector",
		zap.Duration("interval", time.Hour),
		zap.Duration("retention", cfg.DLQRetention),
	)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRedis returns nil when no URL is configured
func connectRedis(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}
