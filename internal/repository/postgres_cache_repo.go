package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/docupicks/internal/model"
)

// PostgresCacheRepo はPostgreSQLを使用したキャッシュリポジトリ。
type PostgresCacheRepo struct {
	db *sql.DB
}

// NewPostgresCacheRepo はPostgresCacheRepoを生成する。
func NewPostgresCacheRepo(db *sql.DB) *PostgresCacheRepo {
	return &PostgresCacheRepo{db: db}
}

// Get は指定キーのレコードを取得する。期限切れの場合はnilを返す。
func (r *PostgresCacheRepo) Get(ctx context.Context, key string) (*model.CacheRecord, error) {
	rec := &model.CacheRecord{}
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, data, expires_at, created_at
		 FROM documentary_cache
		 WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&rec.Key, &rec.Data, &expiresAt, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cache entry: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	return rec, nil
}

// Put はレコードを保存する。同じキーが存在する場合は後から書き込んだ内容で上書きする。
func (r *PostgresCacheRepo) Put(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	var exp sql.NullTime
	if !expiresAt.IsZero() {
		exp = sql.NullTime{Time: expiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documentary_cache (id, data, expires_at, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE
		 SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		key, string(data), exp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのレコードを削除する。
func (r *PostgresCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM documentary_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// Ping はデータベースへの疎通を確認する。
func (r *PostgresCacheRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// compile-time interface check
var _ CacheRepository = (*PostgresCacheRepo)(nil)
