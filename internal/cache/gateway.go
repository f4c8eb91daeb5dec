// Package cache は日付をキーとしたドキュメンタリー一覧のキャッシュを扱う。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/hitoshi/docupicks/internal/model"
)

var (
	// ErrMiss はキーに有効なエントリが存在しない場合のエラー。
	ErrMiss = errors.New("cache: miss")
	// ErrCorrupt は保存されたペイロードを解釈できない場合のエラー。ErrMissとしても扱われる。
	ErrCorrupt = errors.New("cache: corrupt payload")
)

// staleSuffix は最後に成功した結果を期限なしで保持するキーの接尾辞。
const staleSuffix = "latest"

// Store はキャッシュの永続化先を定義する。
type Store interface {
	// Get はキーのレコードを返す。存在しない、または期限切れの場合はnil, nilを返す。
	Get(ctx context.Context, key string) (*model.CacheRecord, error)
	// Put はレコードを保存する。expiresAtがゼロ値の場合は期限なし。
	Put(ctx context.Context, key string, data []byte, expiresAt time.Time) error
}

// DailyKey は日付キー（例: DOCS-2026-10-17）を返す。日付はUTCで決まる。
func DailyKey(prefix string, now time.Time) string {
	return prefix + "-" + now.UTC().Format(time.DateOnly)
}

// StaleKey は最後に成功した結果を保持するキーを返す。
func StaleKey(prefix string) string {
	return prefix + "-" + staleSuffix
}

// Gateway はStoreに対してCacheEntryの読み書きを行う。
type Gateway struct {
	store         Store
	ttl           time.Duration
	logger        *slog.Logger
	now           func() time.Time
	retryAttempts uint
	retryDelay    time.Duration
}

// NewGateway はGatewayを生成する。
func NewGateway(store Store, ttl time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:         store,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
		retryAttempts: 3,
		retryDelay:    200 * time.Millisecond,
	}
}

// Get はキーのエントリを返す。
// エントリが無い、期限切れ、またはペイロードが壊れている場合はErrMissを返す。
func (g *Gateway) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	rec, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("キャッシュの読み込みに失敗しました: %w", err)
	}
	if rec == nil {
		return nil, ErrMiss
	}

	var payload []model.Documentary
	if err := json.Unmarshal(rec.Data, &payload); err != nil {
		g.logger.Error("キャッシュのペイロードが壊れています",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrMiss, ErrCorrupt)
	}

	entry := &model.CacheEntry{Key: key, Payload: payload}
	if rec.ExpiresAt != nil {
		entry.ExpiresAt = rec.ExpiresAt.Unix()
	}
	if entry.Expired(g.now()) {
		return nil, ErrMiss
	}
	return entry, nil
}

// Put はペイロードをTTL付きで保存し、保存したエントリを返す。
func (g *Gateway) Put(ctx context.Context, key string, payload []model.Documentary) (*model.CacheEntry, error) {
	expiresAt := g.now().Add(g.ttl)
	if err := g.write(ctx, key, payload, expiresAt); err != nil {
		return nil, err
	}
	return &model.CacheEntry{Key: key, Payload: payload, ExpiresAt: expiresAt.Unix()}, nil
}

// PutStale はペイロードを期限なしで保存する。
func (g *Gateway) PutStale(ctx context.Context, key string, payload []model.Documentary) error {
	return g.write(ctx, key, payload, time.Time{})
}

func (g *Gateway) write(ctx context.Context, key string, payload []model.Documentary, expiresAt time.Time) error {
	if payload == nil {
		payload = []model.Documentary{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗しました: %w", err)
	}

	err = retry.Do(
		func() error {
			return g.store.Put(ctx, key, data, expiresAt)
		},
		retry.Context(ctx),
		retry.Attempts(g.retryAttempts),
		retry.Delay(g.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("キャッシュの書き込みを再試行します",
				slog.String("cache_key", key),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("キャッシュの書き込みに失敗しました: %w", err)
	}
	return nil
}
