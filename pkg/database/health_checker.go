package database

import (
	"context"
	"errors"
	"time"

	"MLNCoreService/config"
	"MLNCoreService/pkg/apperrors"
	"MLNCoreService/pkg/resilience"
	"MLNCoreService/pkg/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthChecker держит circuit breaker-ы хранилищ и проверяет их доступность.
// Ошибки пользователя (правила игры, не найдено, промах кэша) breaker не открывают.
type HealthChecker struct {
	db           *gorm.DB
	redisClient  *redis.Client
	logger       *zap.Logger
	pgCircuit    *resilience.CircuitBreaker
	redisCircuit *resilience.CircuitBreaker
}

// NewDatabaseHealthChecker создает проверку здоровья. redisClient может быть nil:
// тогда Redis считается недоступным, а операции кэша сразу завершаются ошибкой.
func NewDatabaseHealthChecker(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger, cfg config.ResilienceConfig) *HealthChecker {
	opts := []resilience.Option{
		resilience.WithIgnoreFunc(apperrors.IsUserError),
		resilience.WithIgnoredErrors(apperrors.IgnoredErrors...),
		resilience.WithStateListener(func(name string, state resilience.CircuitState) {
			server.RecordCircuitBreakerStateChange(name, int(state))
		}),
	}
	threshold, reset := cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.ResetTimeout

	return &HealthChecker{
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		pgCircuit:    resilience.NewCircuitBreaker("postgres", threshold, reset, logger, opts...),
		redisCircuit: resilience.NewCircuitBreaker("redis", threshold, reset, logger, opts...),
	}
}

// ErrRedisDisabled возвращается операциями кэша, когда Redis не настроен
var ErrRedisDisabled = errors.New("redis is not configured")

// IsDatabaseHealthy проверяет здоровье PostgreSQL
func (c *HealthChecker) IsDatabaseHealthy(ctx context.Context) bool {
	var result int
	err := c.pgCircuit.Execute(ctx, "postgres_health_check", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	})

	return err == nil && result == 1
}

// IsRedisHealthy проверяет здоровье Redis
func (c *HealthChecker) IsRedisHealthy(ctx context.Context) bool {
	if c.redisClient == nil {
		return false
	}
	err := c.redisCircuit.Execute(ctx, "redis_health_check", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return c.redisClient.Ping(ctx).Err()
	})

	return err == nil
}

// WithDatabaseResilience выполняет операцию с базой через circuit breaker
func (c *HealthChecker) WithDatabaseResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return c.pgCircuit.Execute(ctx, operation, fn)
}

// WithRedisResilience выполняет операцию с Redis через circuit breaker
func (c *HealthChecker) WithRedisResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.redisClient == nil {
		return ErrRedisDisabled
	}
	return c.redisCircuit.Execute(ctx, operation, fn)
}

// DatabaseState текущее состояние breaker-а Postgres
func (c *HealthChecker) DatabaseState() resilience.CircuitState {
	return c.pgCircuit.GetState()
}

// SafeRedisOperation выполняет операцию с Redis с таймаутом по умолчанию и логирует сбои.
// Промах кэша сбоем не считается.
func SafeRedisOperation(ctx context.Context, client *redis.Client, logger *zap.Logger, operation string, fn func(ctx context.Context, client *redis.Client) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	err := fn(ctx, client)
	switch {
	case err == nil, errors.Is(err, redis.Nil):
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Redis operation timed out", zap.String("operation", operation))
	case errors.Is(err, redis.ErrClosed):
		logger.Error("Redis connection closed", zap.String("operation", operation))
	default:
		logger.Error("Redis operation failed", zap.String("operation", operation), zap.Error(err))
	}

	return err
}
