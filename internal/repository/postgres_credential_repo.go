package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
// credentials テーブルの (scope, key) を主キーとしてトークンを保持する。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Get は指定スコープ・キーの値を取得する。存在しない場合はok=falseを返す。
func (r *PostgresCredentialRepo) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE scope = $1 AND key = $2`,
		scope, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get credential: %w", err)
	}
	return value, true, nil
}

// Set は値を上書き保存する。
func (r *PostgresCredentialRepo) Set(ctx context.Context, scope, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (scope, key, value, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (scope, key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = now()`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// Delete は値を削除する。存在しない場合もエラーにしない。
func (r *PostgresCredentialRepo) Delete(ctx context.Context, scope, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE scope = $1 AND key = $2`,
		scope, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// DeleteOlderThan は最終更新がcutoffより古い資格情報を削除し、削除件数を返す。
func (r *PostgresCredentialRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale credentials: %w", err)
	}
	return result.RowsAffected()
}
