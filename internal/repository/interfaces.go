// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/docupicks/internal/model"
)

// CacheRepository はドキュメンタリー一覧キャッシュの永続化インターフェース。
type CacheRepository interface {
	// Get は指定キーのレコードを取得する。存在しない、または期限切れの場合はnilを返す。
	Get(ctx context.Context, key string) (*model.CacheRecord, error)

	// Put はレコードを保存する。既存のレコードは上書きされる。
	// expiresAtがゼロ値の場合は期限なしで保存する。
	Put(ctx context.Context, key string, data []byte, expiresAt time.Time) error

	// DeleteExpired は期限切れのレコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)

	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
}
