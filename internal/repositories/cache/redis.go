// Package cache provides the redis-backed wallet read cache. The cache
// is a read optimization only: writers invalidate after commit, and
// every correctness-sensitive path reads the database directly.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creditledger/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NewRedisClient creates a redis client from config.
func NewRedisClient(cfg *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// WalletCache caches wallet rows keyed by user id.
type WalletCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWalletCache creates a wallet cache with the given TTL.
func NewWalletCache(client *redis.Client, ttl time.Duration) *WalletCache {
	return &WalletCache{client: client, ttl: ttl}
}

func walletKey(userID uint) string {
	return fmt.Sprintf("wallet:%d", userID)
}

// GetWallet returns the cached wallet for a user, or an error on miss.
func (c *WalletCache) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	val, err := c.client.Get(ctx, walletKey(userID)).Bytes()
	if err != nil {
		return nil, err
	}
	var wallet models.Wallet
	if err := json.Unmarshal(val, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// SetWallet stores a wallet row in the cache.
func (c *WalletCache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, walletKey(wallet.UserID), data, c.ttl).Err()
}

// InvalidateWallet drops the cached wallet after a committed write.
func (c *WalletCache) InvalidateWallet(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, walletKey(userID)).Err()
}

// HealthCheck verifies the redis connection.
func (c *WalletCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *WalletCache) Close() error {
	return c.client.Close()
}
