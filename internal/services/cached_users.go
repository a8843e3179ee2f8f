package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"task-manager/server/internal/cache"
	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
)

const defaultUserCacheTTL = 10 * time.Minute

// CachedUserStore serves email lookups from Redis. Users are never mutated,
// so entries only expire. Cache failures fall through to the store, and the
// circuit breaker keeps a dead Redis from adding latency to every request.
type CachedUserStore struct {
	store.UserStore

	cache   *cache.RedisCache
	breaker *cache.CircuitBreaker
	metrics *cache.CacheMetrics
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedUserStore(users store.UserStore, redisCache *cache.RedisCache, breaker *cache.CircuitBreaker, ttl time.Duration, logger *slog.Logger) *CachedUserStore {
	if breaker == nil {
		breaker = cache.NewCircuitBreaker(nil)
	}
	if ttl <= 0 {
		ttl = defaultUserCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedUserStore{
		UserStore: users,
		cache:     redisCache,
		breaker:   breaker,
		metrics:   cache.NewCacheMetrics(),
		ttl:       ttl,
		logger:    logger,
	}
}

func userCacheKey(email string) string {
	return "user_email:" + email
}

func (s *CachedUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var cached models.User
	hit := false
	err := s.breaker.Execute(func() error {
		err := s.cache.Get(ctx, userCacheKey(email), &cached)
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil
		}
		if err == nil {
			hit = true
		}
		return err
	})
	switch {
	case hit:
		s.metrics.RecordHit()
		return &cached, nil
	case errors.Is(err, cache.ErrCircuitBreakerOpen):
		s.metrics.RecordBypass()
	case err != nil:
		s.metrics.RecordError()
		s.logger.Warn("user cache lookup failed", "error", err)
	default:
		s.metrics.RecordMiss()
	}

	user, err := s.UserStore.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, user)
	return user, nil
}

func (s *CachedUserStore) InsertUser(ctx context.Context, user *models.User) (store.InsertResult, error) {
	res, err := s.UserStore.InsertUser(ctx, user)
	if err != nil {
		return res, err
	}
	s.remember(ctx, user)
	return res, nil
}

func (s *CachedUserStore) remember(ctx context.Context, user *models.User) {
	err := s.breaker.Execute(func() error {
		return s.cache.Set(ctx, userCacheKey(user.Email), user, s.ttl)
	})
	switch {
	case err == nil:
		s.metrics.RecordSet()
	case errors.Is(err, cache.ErrCircuitBreakerOpen):
	default:
		s.metrics.RecordError()
		s.logger.Warn("user cache write failed", "error", err)
	}
}

func (s *CachedUserStore) Stats() map[string]interface{} {
	stats := s.metrics.Snapshot()
	stats["circuit_breaker"] = s.breaker.GetStats()
	stats["pool"] = s.cache.Stats()
	return stats
}
