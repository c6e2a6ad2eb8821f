// Package session はブラウジングコンテキストごとのセッション状態を管理する。
//
// Containerはトークン（永続ストアのキャッシュ）、ユーザープロフィール、
// 読み込み中フラグを保持する。状態の変更は定義された操作
// （Login / Logout / Invalidate / SetProfile / SetLoading）からのみ行われ、
// 変更のたびに購読者へ同期的に通知される。
package session

import (
	"context"
	"sync"

	"github.com/hitoshi/resultadmin/internal/credential"
	"github.com/hitoshi/resultadmin/internal/model"
)

// State はセッションのスナップショット。
type State struct {
	Token   string
	Profile *model.UserProfile
	Loading bool
}

// Authorized はトークンを保持しているかを返す。
func (s State) Authorized() bool {
	return s.Token != ""
}

// Observer は状態変更の通知を受け取る関数。
type Observer func(State)

// Container は1つのブラウジングコンテキストのセッション状態。
// apiclient.Credentials を満たす。
type Container struct {
	store *credential.Store

	mu        sync.Mutex
	state     State
	observers map[uint64]Observer
	nextID    uint64

	// onInvalidate は401によるトークン破棄のたびに呼ばれる。
	onInvalidate func()
}

// NewContainer は永続ストアからトークンを読み込んでContainerを生成する。
func NewContainer(ctx context.Context, store *credential.Store) (*Container, error) {
	token, _, err := store.Read(ctx)
	if err != nil {
		return nil, err
	}
	c := newEmptyContainer(store)
	c.state.Token = token
	return c, nil
}

func newEmptyContainer(store *credential.Store) *Container {
	return &Container{
		store:     store,
		observers: make(map[uint64]Observer),
	}
}

// ID はブラウジングコンテキストIDを返す。
func (c *Container) ID() string {
	return c.store.Scope()
}

// Store は永続ストアを返す。ログイン時の保存に使用する。
func (c *Container) Store() *credential.Store {
	return c.store
}

// Snapshot は現在の状態を返す。
func (c *Container) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Login はメモリ上のトークンを設定する。永続化は呼び出し側の責務で、
// 同じ値をcredential.Storeに書き込まなければならない。
func (c *Container) Login(token string) {
	c.update(func(s *State) {
		s.Token = token
	})
}

// Logout はメモリ上のトークンとプロフィール、永続ストアのトークンを破棄する。
// ストアの削除に失敗した場合はメモリ上の状態も変更せずエラーを返す。
func (c *Container) Logout(ctx context.Context) error {
	return c.clear(ctx)
}

// Invalidate はバックエンドが401を返したときに呼ばれる。
// Logoutと同じくストアとメモリの両方を戻る前に破棄する。
func (c *Container) Invalidate(ctx context.Context) error {
	if err := c.clear(ctx); err != nil {
		return err
	}
	if c.onInvalidate != nil {
		c.onInvalidate()
	}
	return nil
}

// Token は永続ストアに保存されたトークンを返す。
func (c *Container) Token(ctx context.Context) (string, bool, error) {
	return c.store.Read(ctx)
}

// SetProfile はユーザープロフィールを設定する。
func (c *Container) SetProfile(p *model.UserProfile) {
	c.update(func(s *State) {
		s.Profile = p
	})
}

// SetLoading は読み込み中フラグを設定する。
func (c *Container) SetLoading(loading bool) {
	c.update(func(s *State) {
		s.Loading = loading
	})
}

// Subscribe は購読者を登録し、登録解除の関数を返す。
// 登録解除は何度呼んでもよい。
func (c *Container) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = o
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// clear は永続ストアを先に削除し、成功した場合だけメモリ上の状態を戻す。
// ストアのI/O中はc.muを保持しない。
func (c *Container) clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.update(func(s *State) {
		s.Token = ""
		s.Profile = nil
	})
	return nil
}

// Resync は永続ストアのトークンをメモリ上の状態に反映する。
// 別のレプリカでのログアウトやクリーンアップジョブによる削除を検出するために使う。
// ストアにトークンがなければプロフィールも破棄する。ストアには書き込まない。
func (c *Container) Resync(ctx context.Context) (State, error) {
	token, ok, err := c.store.Read(ctx)
	if err != nil {
		return c.Snapshot(), err
	}
	if !ok {
		token = ""
	}

	c.mu.Lock()
	if c.state.Token == token {
		snapshot := c.state
		c.mu.Unlock()
		return snapshot, nil
	}
	c.state.Token = token
	if token == "" {
		c.state.Profile = nil
	}
	snapshot, observers := c.state, c.observerList()
	c.mu.Unlock()

	notify(observers, snapshot)
	return snapshot, nil
}

// update は状態を変更し、ロック解放後に購読者へ通知する。
// 通知はupdateが戻る前に完了する。
func (c *Container) update(mutate func(s *State)) {
	c.mu.Lock()
	mutate(&c.state)
	snapshot, observers := c.state, c.observerList()
	c.mu.Unlock()

	notify(observers, snapshot)
}

// observerList はc.muを保持した状態で呼ぶ。
func (c *Container) observerList() []Observer {
	list := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		list = append(list, o)
	}
	return list
}

func notify(observers []Observer, s State) {
	for _, o := range observers {
		o(s)
	}
}
