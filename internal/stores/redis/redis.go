// Package redis provides the shared-cache backend for the catalog. With
// more than one instance behind a load balancer the in-process cache
// would go stale per instance after a sale; a single Redis key keeps them
// aligned.
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"storefront-service/internal/catalog"
	"storefront-service/pkg/logkey"

	redisclient "github.com/redis/go-redis/v9"
)

const catalogKey = "catalog:products"

type CatalogCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewCatalogCache(addr, password string, ttl time.Duration) *CatalogCache {
	client := redisclient.NewClient(&redisclient.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &CatalogCache{client: client, ttl: ttl}
}

func (r *CatalogCache) Get(ctx context.Context) ([]catalog.Product, bool) {
	payload, err := r.client.Get(ctx, catalogKey).Result()
	if err != nil {
		if err != redisclient.Nil {
			slog.Error("redis catalog read failed", slog.String(logkey.ERROR, err.Error()))
		}
		return nil, false
	}

	var products []catalog.Product
	if err := json.Unmarshal([]byte(payload), &products); err != nil {
		slog.Error("cached catalog is corrupt, dropping it", slog.String(logkey.ERROR, err.Error()))
		r.Invalidate(ctx)
		return nil, false
	}
	return products, true
}

func (r *CatalogCache) Set(ctx context.Context, products []catalog.Product) {
	payload, err := json.Marshal(products)
	if err != nil {
		slog.Error("failed to marshal catalog for cache", slog.String(logkey.ERROR, err.Error()))
		return
	}
	if err := r.client.Set(ctx, catalogKey, payload, r.ttl).Err(); err != nil {
		// A cache write failure only costs a re-fetch on the next read.
		slog.Error("redis catalog write failed", slog.String(logkey.ERROR, err.Error()))
	}
}

func (r *CatalogCache) Invalidate(ctx context.Context) {
	if err := r.client.Del(ctx, catalogKey).Err(); err != nil {
		slog.Error("redis catalog invalidation failed", slog.String(logkey.ERROR, err.Error()))
	}
}

func (r *CatalogCache) Close() error {
	return r.client.Close()
}
