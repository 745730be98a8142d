package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/pkg/circuitbreaker"
)

var (
	ErrCacheMiss      = errors.New("cache miss")
	errVersionChanged = errors.New("cart version changed")
)

// RedisCache keeps rendered carts for display. Stock checks never read from it.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration, log *zap.Logger) *RedisCache {
	cfg := circuitbreaker.DefaultConfig("redis-cart-cache")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrCacheMiss)
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
		breaker: circuitbreaker.New[[]byte](cfg, log),
	}
}

func (r *RedisCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	key := cacheKey(userID)

	data, err := r.breaker.Execute(func() ([]byte, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return data, err
	})
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &cart, nil
}

// Version returns the token Delete rotates for userID, or "" if none is set.
// Read it before loading the cart and hand it back to Set.
func (r *RedisCache) Version(ctx context.Context, userID int64) (string, error) {
	key := versionKey(userID)

	data, err := r.breaker.Execute(func() ([]byte, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return "", fmt.Errorf("redis get version failed: %w", err)
	}
	return string(data), nil
}

// Set stores cart only while the user's version still equals version, so a
// cart loaded before an invalidation never lands in the cache.
func (r *RedisCache) Set(ctx context.Context, userID int64, version string, cart *domain.Cart) error {
	key := cacheKey(userID)
	verKey := versionKey(userID)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	_, err = r.breaker.Execute(func() ([]byte, error) {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, verKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if current != version {
				return errVersionChanged
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, jsonCart, r.ttl())
				return nil
			})
			return err
		}, verKey)
		if errors.Is(err, errVersionChanged) || errors.Is(err, redis.TxFailedErr) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete drops the cached cart and rotates the version, which voids any fill
// that read the old one.
func (r *RedisCache) Delete(ctx context.Context, userID int64) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, versionKey(userID), uuid.NewString(), 2*r.baseTTL)
			pipe.Del(ctx, cacheKey(userID))
			return nil
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// ttl spreads expirations so carts cached together do not expire together.
func (r *RedisCache) ttl() time.Duration {
	spread := int64(r.baseTTL / 4)
	if spread <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + time.Duration(rand.Int63n(spread))
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func versionKey(userID int64) string {
	return fmt.Sprintf("cart:ver:%d", userID)
}
