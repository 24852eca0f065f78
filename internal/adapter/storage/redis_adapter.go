package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

const (
	formNoKeyPrefix = "formno:"
	catalogKey      = "catalog:inventory"
	// reservationTTL only has to outlive one save. Once the row exists the
	// unique key guards the number, so a reservation orphaned by a crash
	// blocks the year for no longer than this.
	reservationTTL    = 30 * time.Second
	defaultCatalogTTL = 5 * time.Minute
)

type RedisAdapter struct {
	client     *redis.Client
	catalogTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, catalogTTL time.Duration) *RedisAdapter {
	if catalogTTL <= 0 {
		catalogTTL = defaultCatalogTTL
	}
	return &RedisAdapter{client: client, catalogTTL: catalogTTL}
}

func formNoKey(fiscalYear string, formNo int) string {
	return fmt.Sprintf("%s%s:%d", formNoKeyPrefix, fiscalYear, formNo)
}

func (r *RedisAdapter) ReserveFormNumber(ctx context.Context, fiscalYear string, formNo int) (bool, error) {
	ok, err := r.client.SetNX(ctx, formNoKey(fiscalYear, formNo), 1, reservationTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseFormNumber(ctx context.Context, fiscalYear string, formNo int) error {
	return r.client.Del(ctx, formNoKey(fiscalYear, formNo)).Err()
}

func (r *RedisAdapter) GetCatalog(ctx context.Context) ([]domain.InventoryItem, bool, error) {
	data, err := r.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []domain.InventoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("decode catalog: %w", err)
	}
	return items, true, nil
}

func (r *RedisAdapter) SetCatalog(ctx context.Context, items []domain.InventoryItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return r.client.Set(ctx, catalogKey, data, r.catalogTTL).Err()
}

func (r *RedisAdapter) InvalidateCatalog(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}
