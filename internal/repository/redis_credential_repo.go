package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix はRedis上の資格情報キーのプレフィックス。
const redisKeyPrefix = "resultadmin:cred"

// RedisCredentialRepo はRedisを使用した資格情報リポジトリ。
// ttlが正の場合、書き込みのたびに有効期限を設定し直す。
type RedisCredentialRepo struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisCredentialRepo はRedisCredentialRepoを生成する。
// ttlが0以下の場合は有効期限なしで保存する。
func NewRedisCredentialRepo(rdb redis.UniversalClient, ttl time.Duration) *RedisCredentialRepo {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCredentialRepo{rdb: rdb, ttl: ttl}
}

// Get は指定スコープ・キーの値を取得する。
func (r *RedisCredentialRepo) Get(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := r.rdb.Get(ctx, redisKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get credential: %w", err)
	}
	return value, true, nil
}

// Set は値を上書き保存する。
func (r *RedisCredentialRepo) Set(ctx context.Context, scope, key, value string) error {
	if err := r.rdb.Set(ctx, redisKey(scope, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// Delete は値を削除する。存在しない場合もエラーにしない。
func (r *RedisCredentialRepo) Delete(ctx context.Context, scope, key string) error {
	if err := r.rdb.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Ping はRedisへの接続を確認する。
func (r *RedisCredentialRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func redisKey(scope, key string) string {
	return redisKeyPrefix + ":" + scope + ":" + key
}
