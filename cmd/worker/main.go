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
	"sync"
	"syscall"
	"time"

	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/metrics"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/estimator"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/telemetry"
	"github.com/benvon/smart-reminders/internal/workers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including estimator prompts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag
	cfg.WorkerDebugMode = debugMode

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("estimator", cfg.Estimator),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:     cfg.OTELEnabled,
		ServiceName: "smart-reminders-worker",
		Endpoint:    cfg.OTELEndpoint,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	} else {
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
	zapLogger.Info("connected_to_database")

	jobQueue, err := queue.ConnectRabbitMQ(context.Background(), cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	cache, closeCache, err := newEstimateCache(cfg)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer closeCache()

	est, err := estimator.Build(cfg.Estimator, cfg.EstimatorConfig(), cache, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_estimator", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid_reminder_timezone", zap.Error(err))
	}

	var recorder *metrics.Metrics
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	orchestrator := reminder.NewOrchestrator(
		parser.New(parser.WithLocation(loc)),
		est,
		reminder.WithLogger(zapLogger),
		reminder.WithRecorder(recorder),
	)

	reminderRepo := database.NewReminderRepository(db)
	planner := workers.NewReminderPlanner(orchestrator, reminderRepo, jobQueue, zapLogger, recorder)
	reprocessor := workers.NewReprocessor(jobQueue, reminderRepo, cfg.StaleAfter, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range msgChan {
			if err := planner.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				fields := []zap.Field{zap.Error(err)}
				if job != nil {
					fields = append(fields,
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)),
					)
				}
				zapLogger.Error("failed_to_process_job", fields...)
			}
		}
		zapLogger.Info("message_channel_closed")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range errChan {
			zapLogger.Error("queue_error", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reprocessor.Start(ctx, cfg.ReprocessInterval); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("reprocessor_stopped_with_error", zap.Error(err))
		}
	}()

	dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, cfg.DLQRetention, zapLogger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if recorder != nil {
		metricsSrv = newMetricsServer(cfg.WorkerMetricsPort, recorder, db, jobQueue)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
	}

	<-sigChan
	zapLogger.Info("worker_shutting_down")
	cancel()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("metrics_server_shutdown_failed", zap.Error(err))
		}
		shutdownCancel()
	}

	wg.Wait()
	zapLogger.Info("worker_stopped")
}

// newEstimateCache prefers Redis so estimates are shared with the API server
func newEstimateCache(cfg *config.Config) (estimator.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return estimator.NewMemoryCache(cfg.EstimateCacheSize, cfg.EstimateCacheTTL), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return estimator.NewRedisCache(client, cfg.EstimateCacheTTL), func() { _ = client.Close() }, nil
}

func newMetricsServer(port string, recorder *metrics.Metrics, db *database.DB, jobQueue queue.JobQueue) *http.Server {
	health := handlers.NewHealthChecker().
		AddCheck("database", db.HealthCheck).
		AddCheck("queue", jobQueue.HealthCheck)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", recorder.Handler())
	mux.HandleFunc("GET /healthz", health.HealthCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
