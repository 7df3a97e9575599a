package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKey = "attendance:school_settings"

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store is the persistence the service reads and writes through.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Upsert(ctx context.Context, s Settings) (Settings, error)
}

// Cache is a small string cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache adapts a redis client to Cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Del implements Cache.
func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Service serves the current settings to every attendance operation and
// applies administrative saves. Reads go through the cache; a save
// invalidates it. Cache failures degrade to reading the store.
type Service struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewService creates a settings service. cache may be nil.
func NewService(store Store, cache Cache, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cache: cache, ttl: ttl, log: log}
}

// Current returns the configured settings. When nothing has been saved yet it
// returns zero Settings, which disables geofencing and uses the default
// start threshold.
func (s *Service) Current(ctx context.Context) (Settings, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			var cached Settings
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				return cached, nil
			}
			s.log.Warn("discarding undecodable cached settings")
		case !errors.Is(err, ErrCacheMiss):
			s.log.Warn("settings cache read failed", zap.Error(err))
		}
	}

	current, err := s.store.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	s.fill(ctx, current)
	return current, nil
}

// Save validates and stores new settings.
func (s *Service) Save(ctx context.Context, in Settings) (Settings, error) {
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	saved, err := s.store.Upsert(ctx, in)
	if err != nil {
		return Settings{}, err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey); err != nil {
			s.log.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return saved, nil
}

func (s *Service) fill(ctx context.Context, current Settings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, string(raw), s.ttl); err != nil {
		s.log.Warn("settings cache write failed", zap.Error(fmt.Errorf("set %s: %w", cacheKey, err)))
	}
}
