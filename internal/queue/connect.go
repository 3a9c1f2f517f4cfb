package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultConnectAttempts bounds ConnectRabbitMQ retries
	DefaultConnectAttempts = 10

	initialConnectDelay = 2 * time.Second
	maxConnectDelay     = 30 * time.Second
)

// connectDelay is the exponential backoff before retry attempt+1, capped at maxConnectDelay
func connectDelay(attempt int) time.Duration {
	if attempt >= 5 {
		return maxConnectDelay
	}
	return min(initialConnectDelay*time.Duration(1<<uint(attempt)), maxConnectDelay)
}

// ConnectRabbitMQ dials RabbitMQ, retrying with exponential backoff while the
// broker is still starting. It gives up after attempts tries or when ctx ends.
func ConnectRabbitMQ(ctx context.Context, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	return connectWithRetry(ctx, attempts, logger, func() (*RabbitMQQueue, error) {
		return NewRabbitMQQueue(amqpURL, logger)
	})
}

func connectWithRetry[Q any](ctx context.Context, attempts int, logger *zap.Logger, dial func() (Q, error)) (Q, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}

	var zero Q
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := dial()
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := connectDelay(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}
