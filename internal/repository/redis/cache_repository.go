package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MLNCoreService/internal/models"

	"github.com/redis/go-redis/v9"
)

// Поля хэша page:<id>: страница для владельца и для остальных посетителей
// (у посетителей скрыты секретные нетворкеры)
const (
	pageFieldOwner  = "owner"
	pageFieldPublic = "public"
)

func pageKey(ownerID int64) string {
	return fmt.Sprintf("page:%d", ownerID)
}

func inboxKey(userID int64) string {
	return fmt.Sprintf("inbox:%d", userID)
}

func pageField(asOwner bool) string {
	if asOwner {
		return pageFieldOwner
	}
	return pageFieldPublic
}

// CacheRepository хранит read model страниц и входящих в Redis
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheRepository создает новый экземпляр CacheRepository
func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	return &CacheRepository{
		client: client,
		ttl:    ttl,
	}
}

// SetPage кэширует страницу владельца в представлении для владельца или посетителя
func (r *CacheRepository) SetPage(ctx context.Context, page *models.PageView, asOwner bool) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}

	key := pageKey(page.UserID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, pageField(asOwner), data)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetPage получает страницу из кэша; промах возвращает redis.Nil
func (r *CacheRepository) GetPage(ctx context.Context, ownerID int64, asOwner bool) (*models.PageView, error) {
	data, err := r.client.HGet(ctx, pageKey(ownerID), pageField(asOwner)).Bytes()
	if err != nil {
		return nil, err
	}

	var page models.PageView
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SetInbox кэширует список входящих
func (r *CacheRepository) SetInbox(ctx context.Context, userID int64, inbox []models.MessageView) error {
	data, err := json.Marshal(inbox)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, inboxKey(userID), data, r.ttl).Err()
}

// GetInbox получает список входящих из кэша; промах возвращает redis.Nil
func (r *CacheRepository) GetInbox(ctx context.Context, userID int64) ([]models.MessageView, error) {
	data, err := r.client.Get(ctx, inboxKey(userID)).Bytes()
	if err != nil {
		return nil, err
	}

	var inbox []models.MessageView
	if err := json.Unmarshal(data, &inbox); err != nil {
		return nil, err
	}
	return inbox, nil
}

// Invalidate удаляет закэшированные страницы и входящие пользователей
func (r *CacheRepository) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, pageKey(id), inboxKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}
