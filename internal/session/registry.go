package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/resultadmin/internal/credential"
)

// Recorder はセッション関連のメトリクス記録先。
type Recorder interface {
	RecordCredentialInvalidation()
	SetActiveSessions(n int)
	SetAuthorizedSessions(n int)
}

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を過ぎたContainerを破棄する
	CleanupInterval time.Duration // 破棄判定の間隔
}

// DefaultRegistryConfig はデフォルトの設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type entry struct {
	container   *Container
	lastAccess  time.Time
	authorized  bool
	unsubscribe func()
}

// Registry はブラウジングコンテキストIDごとのContainerを保持する。
//
// Containerは最初のリクエストで永続ストアから起動される。
// 一定時間アクセスのないContainerはバックグラウンドで破棄され、
// 次のアクセス時に永続ストアから再度起動される。
// 登録したContainerは購読され、認証済みセッション数が状態変更のたびに更新される。
type Registry struct {
	backend  credential.Backend
	config   RegistryConfig
	recorder Recorder

	mu      sync.Mutex
	entries map[string]*entry

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRegistry は新しいRegistryを生成し、クリーンアップを開始する。
// recorderはnilでもよい。
func NewRegistry(backend credential.Backend, config RegistryConfig, recorder Recorder) *Registry {
	r := &Registry{
		backend:  backend,
		config:   config,
		recorder: recorder,
		entries:  make(map[string]*entry),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Stop はクリーンアップのゴルーチンを停止し、終了を待つ。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.done
}

// Get はidのContainerを返す。存在しなければ永続ストアから起動する。
func (r *Registry) Get(ctx context.Context, id string) (*Container, error) {
	if id == "" {
		return nil, credential.ErrEmptyScope
	}

	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.lastAccess = time.Now()
		r.mu.Unlock()
		return e.container, nil
	}
	r.mu.Unlock()

	c, err := NewContainer(ctx, credential.NewStore(r.backend, id))
	if err != nil {
		return nil, fmt.Errorf("failed to boot session: %w", err)
	}
	if r.recorder != nil {
		c.onInvalidate = r.recorder.RecordCredentialInvalidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// ダブルチェック
	if e, ok := r.entries[id]; ok {
		e.lastAccess = time.Now()
		return e.container, nil
	}
	e := &entry{container: c, lastAccess: time.Now(), authorized: c.Snapshot().Authorized()}
	e.unsubscribe = c.Subscribe(func(st State) {
		r.observe(id, c, st)
	})
	r.entries[id] = e
	r.reportLocked()

	return c, nil
}

// Transient は登録も永続ストアの読み込みもしない未認証のContainerを返す。
// 発行したばかりのIDについて、Cookieが戻ってくるまで登録を遅らせるのに使う。
func (r *Registry) Transient(id string) *Container {
	c := newEmptyContainer(credential.NewStore(r.backend, id))
	if r.recorder != nil {
		c.onInvalidate = r.recorder.RecordCredentialInvalidation
	}
	return c
}

// observe は登録済みContainerの状態変更を受けて認証済み数を更新する。
func (r *Registry) observe(id string, c *Container, st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.container != c || e.authorized == st.Authorized() {
		return
	}
	e.authorized = st.Authorized()
	r.reportLocked()
}

// Authorized は認証済みのContainerの数を返す。
func (r *Registry) Authorized() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authorizedLocked()
}

// Len は保持しているContainerの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) cleanupLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスがIdleTTLより古いContainerを破棄する。
// 永続ストアのトークンは破棄しない。
func (r *Registry) evictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		if now.Sub(e.lastAccess) > r.config.IdleTTL {
			e.unsubscribe()
			delete(r.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.reportLocked()
	}
	return evicted
}

func (r *Registry) authorizedLocked() int {
	n := 0
	for _, e := range r.entries {
		if e.authorized {
			n++
		}
	}
	return n
}

func (r *Registry) reportLocked() {
	if r.recorder != nil {
		r.recorder.SetActiveSessions(len(r.entries))
		r.recorder.SetAuthorizedSessions(r.authorizedLocked())
	}
}
