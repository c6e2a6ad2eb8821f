// Package repository は資格情報バックエンドの永続化実装を提供する。
// いずれもcredential.Backendとしてsession.Registryに渡される。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/resultadmin/internal/credential"
)

// StaleCredentialSweeper は一定期間更新されていない資格情報を削除できるバックエンド。
// Redisは有効期限で自動的に消えるため、PostgreSQLのみが実装する。
type StaleCredentialSweeper interface {
	credential.Backend
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ StaleCredentialSweeper = (*PostgresCredentialRepo)(nil)
	_ credential.Backend     = (*RedisCredentialRepo)(nil)
)
