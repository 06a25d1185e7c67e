// Package tokencache keeps at most one live checkout token per
// (merchant, order, amount, currency) so repeated checkout attempts reuse the
// processor session instead of minting a new one.
package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const keyPrefix = "checkout_token:"

// Store is the persistence behind the cache. SetNX must be an atomic
// insert-if-absent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Observer is notified of cache hits and misses.
type Observer func(result string)

type Cache struct {
	store    Store
	ttl      time.Duration
	logger   *zap.Logger
	observer Observer
}

func New(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// WithObserver sets the hit/miss observer and returns the cache.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// Key derives the cache key for a pending payment request.
func Key(merchantID, orderID, amount, currency string) string {
	sum := sha256.Sum256([]byte(merchantID + "_" + orderID + "_" + amount + "_" + currency))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Acquire returns the live token for key, minting and storing one on a miss.
// When two callers race on a miss, both may mint, but only the first stored
// token survives and both callers get it.
func (c *Cache) Acquire(ctx context.Context, key string, mint func(ctx context.Context) (string, error)) (string, error) {
	token, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read checkout token: %w", err)
	}
	if ok {
		c.observe("hit")
		return token, nil
	}
	c.observe("miss")

	token, err = mint(ctx)
	if err != nil {
		return "", err
	}

	stored, err := c.store.SetNX(ctx, key, token, c.ttl)
	if err != nil {
		return "", fmt.Errorf("store checkout token: %w", err)
	}
	if stored {
		return token, nil
	}

	winner, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read checkout token: %w", err)
	}
	if !ok {
		// Winner expired or was invalidated between SetNX and Get.
		return token, nil
	}
	c.logger.Info("Concurrent checkout token mint discarded", zap.String("key", key))
	return winner, nil
}

// Invalidate drops the token for key so the next Acquire mints a fresh session.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete checkout token: %w", err)
	}
	return nil
}

func (c *Cache) observe(result string) {
	if c.observer != nil {
		c.observer(result)
	}
}
