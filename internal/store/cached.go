package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/models"
)

// Cache TTLs. Every write invalidates, so these only bound staleness against
// writers that bypass the cache.
const (
	ttlChannels = 1 * time.Minute
	ttlChannel  = 5 * time.Minute
	ttlDates    = 5 * time.Minute
)

const (
	keyChannels = cache.KeyPrefix + "channels:"
	keyChannel  = cache.KeyPrefix + "channel:"
	keyDates    = cache.KeyPrefix + "dates:all"
)

// CachedStore serves the read API from Redis in front of another Store.
// Drop and Insert invalidate everything cached for the affected kind; the
// run watermark is never cached.
type CachedStore struct {
	inner Store
	cache *cache.Redis
}

// NewCachedStore wraps inner.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

// --- cached reads ---

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, error) {
	filter = filter.Normalize()
	key := keyChannels + filterHash(filter)
	if v, err := cache.Get[[]models.Channel](ctx, c.cache, key); err == nil {
		return v, nil
	}
	channels, err := c.inner.ListChannels(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, channels, ttlChannels)
	return channels, nil
}

func (c *CachedStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	key := keyChannel + id
	if v, err := cache.Get[models.Channel](ctx, c.cache, key); err == nil {
		localize(&v)
		return &v, nil
	}
	ch, err := c.inner.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, ch, ttlChannel)
	return ch, nil
}

func (c *CachedStore) ListDates(ctx context.Context) ([]models.Date, error) {
	if v, err := cache.Get[[]models.Date](ctx, c.cache, keyDates); err == nil {
		for i := range v {
			localizeDate(&v[i])
		}
		return v, nil
	}
	dates, err := c.inner.ListDates(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, keyDates, dates, ttlDates)
	return dates, nil
}

// --- writes with invalidation ---

func (c *CachedStore) Drop(ctx context.Context, kind Kind) error {
	err := c.inner.Drop(ctx, kind)
	c.invalidate(ctx, kind)
	return err
}

func (c *CachedStore) InsertChannels(ctx context.Context, channels []models.Channel) (int, error) {
	n, err := c.inner.InsertChannels(ctx, channels)
	c.invalidate(ctx, KindChannels)
	return n, err
}

func (c *CachedStore) InsertDates(ctx context.Context, dates []models.Date) (int, error) {
	n, err := c.inner.InsertDates(ctx, dates)
	c.invalidate(ctx, KindDates)
	return n, err
}

// --- passthrough ---

func (c *CachedStore) Count(ctx context.Context, kind Kind) (int64, error) {
	return c.inner.Count(ctx, kind)
}

func (c *CachedStore) SaveRun(ctx context.Context, run models.Run) error {
	return c.inner.SaveRun(ctx, run)
}

func (c *CachedStore) LatestRun(ctx context.Context) (*models.Run, error) {
	return c.inner.LatestRun(ctx)
}

// Close closes the inner store. The Redis client is owned by the caller.
func (c *CachedStore) Close(ctx context.Context) error {
	return c.inner.Close(ctx)
}

// --- helpers ---

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		logctx.From(ctx).Warn("cache_set_failed", slog.String("key", key), slog.Any("err", err))
	}
}

func (c *CachedStore) invalidate(ctx context.Context, kind Kind) {
	var patterns []string
	switch kind {
	case KindChannels:
		patterns = []string{keyChannels + "*", keyChannel + "*"}
	case KindDates:
		patterns = []string{keyDates}
	}
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil && !errors.Is(err, context.Canceled) {
			logctx.From(ctx).Warn("cache_invalidate_failed", slog.String("pattern", p), slog.Any("err", err))
		}
	}
}

// filterHash is a short deterministic key for a ChannelFilter.
func filterHash(f ChannelFilter) string {
	raw := fmt.Sprintf("%s|%s|%d|%d", f.Provider, f.Category, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
