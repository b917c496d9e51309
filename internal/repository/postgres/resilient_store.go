package postgres

import (
	"context"
	"time"

	"MLNCoreService/config"
	"MLNCoreService/pkg/apperrors"
	"MLNCoreService/pkg/database"
	"MLNCoreService/pkg/resilience"
	"MLNCoreService/pkg/server"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResilientStore добавляет к Store circuit breaker, повтор чтений, таймауты и метрики
type ResilientStore struct {
	store         *Store
	logger        *zap.Logger
	healthChecker *database.HealthChecker
	retry         resilience.RetryOptions
	timeout       time.Duration
}

// NewResilientStore создает отказоустойчивое хранилище
func NewResilientStore(db *gorm.DB, healthChecker *database.HealthChecker, logger *zap.Logger, cfg config.ResilienceConfig) *ResilientStore {
	retry := resilience.RetryOptions{
		MaxRetries:     cfg.Retry.MaxRetries,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		BackoffFactor:  cfg.Retry.BackoffFactor,
		Jitter:         cfg.Retry.Jitter,
		ShouldRetry:    retryRead,
	}

	return &ResilientStore{
		store:         NewStore(db, logger),
		logger:        logger,
		healthChecker: healthChecker,
		retry:         retry,
		timeout:       cfg.Database.CommandTimeout,
	}
}

// retryRead повторяет только сбои инфраструктуры: ошибки пользователя
// (не найдено, предусловия) при повторе не изменятся
func retryRead(err error) bool {
	return !apperrors.IsUserError(err)
}

// Transaction выполняет изменяющую операцию через circuit breaker и записывает метрику.
// Повторов нет: операции ядра не идемпотентны.
func (r *ResilientStore) Transaction(ctx context.Context, operation string, fn func(repo *Repository) error) error {
	startTime := time.Now()
	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	err := r.healthChecker.WithDatabaseResilience(ctx, operation, func(ctx context.Context) error {
		return r.store.Transaction(ctx, operation, fn)
	})

	server.RecordDBOperation(operation, time.Since(startTime), err)

	return err
}

// Read выполняет чтение с повторными попытками при сбоях инфраструктуры
func (r *ResilientStore) Read(ctx context.Context, operation string, fn func(repo *Repository) error) error {
	startTime := time.Now()
	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	err := resilience.WithRetry(ctx, r.logger, operation, r.retry, func(ctx context.Context) error {
		return r.healthChecker.WithDatabaseResilience(ctx, operation, func(ctx context.Context) error {
			return r.store.Read(ctx, operation, fn)
		})
	})

	server.RecordDBOperation(operation, time.Since(startTime), err)

	return err
}

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
