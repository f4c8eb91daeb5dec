package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hitoshi/docupicks/internal/model"
)

// RedisCacheRepo はRedisを使用したキャッシュリポジトリ。
// 期限切れの削除はRedisのTTLに任せる。
type RedisCacheRepo struct {
	c *goredis.Client
}

// NewRedisCacheRepo はgo-redisのClientからRedisCacheRepoを生成する。
func NewRedisCacheRepo(c *goredis.Client) *RedisCacheRepo {
	return &RedisCacheRepo{c: c}
}

// NewRedisClient は接続URL（redis://...）からgo-redisのClientを生成する。
// 接続は最初のコマンド実行時に確立される。
func NewRedisClient(redisURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return goredis.NewClient(opt), nil
}

// Get は指定キーのレコードを取得する。存在しない場合はnilを返す。
func (r *RedisCacheRepo) Get(ctx context.Context, key string) (*model.CacheRecord, error) {
	var get *goredis.StringCmd
	var ttl *goredis.DurationCmd
	_, err := r.c.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	rec := &model.CacheRecord{Key: key, Data: data}
	// PTTLは期限なしの場合に負の値を返す
	if d := ttl.Val(); d > 0 {
		expiresAt := time.Now().Add(d)
		rec.ExpiresAt = &expiresAt
	}
	return rec, nil
}

// Put はレコードを保存する。expiresAtがゼロ値の場合は期限なしで保存する。
func (r *RedisCacheRepo) Put(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	var expiration time.Duration
	if !expiresAt.IsZero() {
		expiration = time.Until(expiresAt)
		if expiration <= 0 {
			if err := r.c.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("failed to delete expired cache entry: %w", err)
			}
			return nil
		}
	}
	if err := r.c.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// DeleteExpired はRedisがTTLで削除するため何もしない。
func (r *RedisCacheRepo) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

// Ping はRedisへの疎通を確認する。
func (r *RedisCacheRepo) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

// Close はクライアントの接続を閉じる。
func (r *RedisCacheRepo) Close() error {
	return r.c.Close()
}

// compile-time interface check
var _ CacheRepository = (*RedisCacheRepo)(nil)
