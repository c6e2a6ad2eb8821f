package credential

import (
	"context"
	"sync"
)

// MemoryBackend はプロセス内マップによるBackend実装。
// プロセス再起動で消えるが、同一プロセス内のリロードには耐える。
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryBackend はMemoryBackendを生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]map[string]string)}
}

// Get は値を取得する。
func (b *MemoryBackend) Get(_ context.Context, scope, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[scope][key]
	return v, ok, nil
}

// Set は値を保存する。
func (b *MemoryBackend) Set(_ context.Context, scope, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.values[scope]
	if !ok {
		m = make(map[string]string)
		b.values[scope] = m
	}
	m[key] = value
	return nil
}

// Delete は値を削除する。
func (b *MemoryBackend) Delete(_ context.Context, scope, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.values[scope]
	if !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		delete(b.values, scope)
	}
	return nil
}
