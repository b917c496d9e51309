package redis

import (
	"context"
	"errors"
	"time"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/database"
	"MLNCoreService/pkg/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResilientCacheRepository добавляет к кэшу circuit breaker, таймауты и метрики.
// Сбои кэша никогда не проваливают операцию: чтение дает промах, запись пропускается.
type ResilientCacheRepository struct {
	client        *redis.Client
	repo          *CacheRepository
	logger        *zap.Logger
	healthChecker *database.HealthChecker
	timeout       time.Duration
}

// NewResilientCacheRepository создает новый экземпляр отказоустойчивого кэша.
// client может быть nil: тогда каждое чтение дает промах.
func NewResilientCacheRepository(client *redis.Client, healthChecker *database.HealthChecker, logger *zap.Logger, ttl, timeout time.Duration) *ResilientCacheRepository {
	return &ResilientCacheRepository{
		client:        client,
		repo:          NewCacheRepository(client, ttl),
		logger:        logger,
		healthChecker: healthChecker,
		timeout:       timeout,
	}
}

func (r *ResilientCacheRepository) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	startTime := time.Now()
	if _, ok := ctx.Deadline(); !ok && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := r.healthChecker.WithRedisResilience(ctx, operation, func(ctx context.Context) error {
		return database.SafeRedisOperation(ctx, r.client, r.logger, operation, func(ctx context.Context, _ *redis.Client) error {
			return fn(ctx)
		})
	})

	if !errors.Is(err, database.ErrRedisDisabled) {
		server.RecordCacheOperation(operation, time.Since(startTime), err)
	}
	return err
}

// quiet сообщает, что ошибку не нужно логировать: промах или кэш не настроен
func quiet(err error) bool {
	return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, database.ErrRedisDisabled)
}

// GetPage возвращает страницу и признак попадания
func (r *ResilientCacheRepository) GetPage(ctx context.Context, ownerID int64, asOwner bool) (*models.PageView, bool) {
	var page *models.PageView
	err := r.run(ctx, "page_get", func(ctx context.Context) error {
		var err error
		page, err = r.repo.GetPage(ctx, ownerID, asOwner)
		return err
	})
	if err != nil {
		if !quiet(err) {
			r.logger.Warn("Page cache read failed, loading from database",
				zap.Int64("user_id", ownerID), zap.Error(err))
		}
		return nil, false
	}
	return page, true
}

// SetPage кэширует страницу; ошибки только логируются
func (r *ResilientCacheRepository) SetPage(ctx context.Context, page *models.PageView, asOwner bool) {
	err := r.run(ctx, "page_set", func(ctx context.Context) error {
		return r.repo.SetPage(ctx, page, asOwner)
	})
	if !quiet(err) {
		r.logger.Warn("Failed to cache page, continuing without caching",
			zap.Int64("user_id", page.UserID), zap.Error(err))
	}
}

// GetInbox возвращает входящие и признак попадания
func (r *ResilientCacheRepository) GetInbox(ctx context.Context, userID int64) ([]models.MessageView, bool) {
	var inbox []models.MessageView
	err := r.run(ctx, "inbox_get", func(ctx context.Context) error {
		var err error
		inbox, err = r.repo.GetInbox(ctx, userID)
		return err
	})
	if err != nil {
		if !quiet(err) {
			r.logger.Warn("Inbox cache read failed, loading from database",
				zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	return inbox, true
}

// SetInbox кэширует входящие; ошибки только логируются
func (r *ResilientCacheRepository) SetInbox(ctx context.Context, userID int64, inbox []models.MessageView) {
	err := r.run(ctx, "inbox_set", func(ctx context.Context) error {
		return r.repo.SetInbox(ctx, userID, inbox)
	})
	if !quiet(err) {
		r.logger.Warn("Failed to cache inbox, continuing without caching",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Invalidate удаляет кэш пользователей, затронутых операцией
func (r *ResilientCacheRepository) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	err := r.run(ctx, "invalidate", func(ctx context.Context) error {
		return r.repo.Invalidate(ctx, userIDs...)
	})
	if !quiet(err) {
		r.logger.Warn("Failed to invalidate cache",
			zap.Int64s("user_ids", userIDs), zap.Error(err))
	}
}
