package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/resultadmin/internal/credential"
	"github.com/hitoshi/resultadmin/internal/model"
)

// --- モック定義 ---

// flakyBackend はDeleteのみ失敗させられるバックエンド。
type flakyBackend struct {
	*credential.MemoryBackend
	deleteErr error
	getErr    error
}

func (b *flakyBackend) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if b.getErr != nil {
		return "", false, b.getErr
	}
	return b.MemoryBackend.Get(ctx, scope, key)
}

func (b *flakyBackend) Delete(ctx context.Context, scope, key string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	return b.MemoryBackend.Delete(ctx, scope, key)
}

func newTestContainer(t *testing.T, stored string) (*Container, *credential.Store) {
	t.Helper()
	store := credential.NewStore(credential.NewMemoryBackend(), "ctx-1")
	if stored != "" {
		if err := store.Write(context.Background(), stored); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
	}
	c, err := NewContainer(context.Background(), store)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	return c, store
}

func storedToken(t *testing.T, store *credential.Store) (string, bool) {
	t.Helper()
	token, ok, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	return token, ok
}

// --- テスト ---

func TestNewContainer_BootsFromStore(t *testing.T) {
	c, _ := newTestContainer(t, "abc123")

	s := c.Snapshot()
	if s.Token != "abc123" || !s.Authorized() {
		t.Errorf("state = %+v, want token abc123", s)
	}
	if c.ID() != "ctx-1" {
		t.Errorf("ID = %q, want ctx-1", c.ID())
	}
}

func TestNewContainer_EmptyStore_Unauthorized(t *testing.T) {
	c, _ := newTestContainer(t, "")
	if c.Snapshot().Authorized() {
		t.Error("container booted from an empty store must be unauthorized")
	}
}

func TestNewContainer_StoreError(t *testing.T) {
	boom := errors.New("backend down")
	store := credential.NewStore(&flakyBackend{MemoryBackend: credential.NewMemoryBackend(), getErr: boom}, "ctx-1")
	if _, err := NewContainer(context.Background(), store); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestLogin_SetsMemoryOnly(t *testing.T) {
	c, store := newTestContainer(t, "")

	c.Login("xyz")

	if got := c.Snapshot().Token; got != "xyz" {
		t.Errorf("Token = %q, want xyz", got)
	}
	if _, ok := storedToken(t, store); ok {
		t.Error("Login must not persist the token")
	}
}

func TestLogout_ClearsMemoryStoreAndProfile(t *testing.T) {
	c, store := newTestContainer(t, "abc123")
	c.SetProfile(&model.UserProfile{Name: "Admin"})

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	s := c.Snapshot()
	if s.Token != "" {
		t.Errorf("memory token = %q, want empty", s.Token)
	}
	if s.Profile != nil {
		t.Errorf("profile = %+v, want nil after logout", s.Profile)
	}
	if _, ok := storedToken(t, store); ok {
		t.Error("store token must be cleared by Logout")
	}
}

func TestLogout_Twice_IsSafe(t *testing.T) {
	c, _ := newTestContainer(t, "abc123")
	for i := 0; i < 2; i++ {
		if err := c.Logout(context.Background()); err != nil {
			t.Fatalf("Logout #%d returned error: %v", i+1, err)
		}
	}
}

func TestLogout_StoreFailure_LeavesStateIntact(t *testing.T) {
	boom := errors.New("backend down")
	backend := &flakyBackend{MemoryBackend: credential.NewMemoryBackend()}
	store := credential.NewStore(backend, "ctx-1")
	_ = store.Write(context.Background(), "abc123")
	c, err := NewContainer(context.Background(), store)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	backend.deleteErr = boom
	if err := c.Logout(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	// メモリとストアは一致したまま
	if got := c.Snapshot().Token; got != "abc123" {
		t.Errorf("memory token = %q, want abc123", got)
	}
	if got, _ := storedToken(t, store); got != "abc123" {
		t.Errorf("store token = %q, want abc123", got)
	}
}

func TestInvalidate_ClearsBothAndCountsOnce(t *testing.T) {
	c, store := newTestContainer(t, "abc123")
	calls := 0
	c.onInvalidate = func() { calls++ }

	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	if c.Snapshot().Authorized() {
		t.Error("container must be unauthorized right after Invalidate")
	}
	if _, ok := storedToken(t, store); ok {
		t.Error("store token must be cleared by Invalidate")
	}
	if calls != 1 {
		t.Errorf("onInvalidate calls = %d, want 1", calls)
	}
}

func TestToken_ReadsStore(t *testing.T) {
	c, store := newTestContainer(t, "")

	if _, ok, _ := c.Token(context.Background()); ok {
		t.Fatal("expected no token")
	}
	_ = store.Write(context.Background(), "fresh")
	token, ok, err := c.Token(context.Background())
	if err != nil || !ok || token != "fresh" {
		t.Errorf("Token = (%q, %v, %v), want fresh", token, ok, err)
	}
}

func TestSetProfileAndLoading_AreIndependent(t *testing.T) {
	c, _ := newTestContainer(t, "abc123")

	c.SetLoading(true)
	c.SetProfile(&model.UserProfile{Name: "Admin"})
	c.SetLoading(false)

	s := c.Snapshot()
	if s.Loading {
		t.Error("Loading = true, want false")
	}
	if s.Profile == nil || s.Profile.Name != "Admin" {
		t.Errorf("Profile = %+v", s.Profile)
	}
	if s.Token != "abc123" {
		t.Errorf("Token = %q, profile/loading must not touch the token", s.Token)
	}
}

func TestSubscribe_NotifiedSynchronouslyOnEveryMutation(t *testing.T) {
	c, _ := newTestContainer(t, "")

	var seen []State
	unsubscribe := c.Subscribe(func(s State) {
		seen = append(seen, s)
	})

	c.Login("xyz")
	if len(seen) != 1 || seen[0].Token != "xyz" {
		t.Fatalf("observer must see the new token before Login returns, seen = %+v", seen)
	}

	c.SetLoading(true)
	c.SetProfile(&model.UserProfile{Name: "Admin"})
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if len(seen) != 4 {
		t.Fatalf("notifications = %d, want 4", len(seen))
	}
	if !seen[1].Loading || seen[2].Profile == nil || seen[3].Authorized() {
		t.Errorf("unexpected sequence: %+v", seen)
	}

	unsubscribe()
	unsubscribe()
	c.Login("again")
	if len(seen) != 4 {
		t.Errorf("observer notified after unsubscribe")
	}
}

func TestSubscribe_ObserverMayReadSnapshot(t *testing.T) {
	c, _ := newTestContainer(t, "")

	var got State
	c.Subscribe(func(State) {
		got = c.Snapshot()
	})
	c.Login("xyz")

	if got.Token != "xyz" {
		t.Errorf("Snapshot inside observer = %+v", got)
	}
}

func TestContainer_ConcurrentMutations(t *testing.T) {
	c, _ := newTestContainer(t, "abc123")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.SetLoading(true)
		}()
		go func() {
			defer wg.Done()
			c.Login("abc123")
		}()
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
		}()
	}
	wg.Wait()

	if c.Snapshot().Token != "abc123" {
		t.Errorf("Token = %q", c.Snapshot().Token)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	c, _ := newTestContainer(t, "")

	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no container in empty context")
	}
	got, ok := FromContext(NewContext(context.Background(), c))
	if !ok || got != c {
		t.Error("FromContext did not return the stored container")
	}
}

// blockingBackend はDeleteをreleaseが閉じられるまで止める。
type blockingBackend struct {
	*credential.MemoryBackend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Delete(ctx context.Context, scope, key string) error {
	close(b.entered)
	<-b.release
	return b.MemoryBackend.Delete(ctx, scope, key)
}

func TestLogout_SnapshotNotBlockedDuringStoreIO(t *testing.T) {
	backend := &blockingBackend{
		MemoryBackend: credential.NewMemoryBackend(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	store := credential.NewStore(backend, "ctx-1")
	_ = store.Write(context.Background(), "abc123")
	c, err := NewContainer(context.Background(), store)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Logout(context.Background()) }()
	<-backend.entered

	snap := make(chan State, 1)
	go func() { snap <- c.Snapshot() }()
	select {
	case s := <-snap:
		if s.Token != "abc123" {
			t.Errorf("Token during store I/O = %q, want abc123", s.Token)
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked while the store was clearing")
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if c.Snapshot().Authorized() {
		t.Error("token must be cleared after Logout returns")
	}
}

func TestResync_StoreClearedElsewhere_DropsTokenAndProfile(t *testing.T) {
	c, store := newTestContainer(t, "abc123")
	c.SetProfile(&model.UserProfile{Name: "Ada"})

	var notified []State
	c.Subscribe(func(s State) { notified = append(notified, s) })

	_ = store.Clear(context.Background())
	s, err := c.Resync(context.Background())
	if err != nil {
		t.Fatalf("Resync returned error: %v", err)
	}
	if s.Authorized() || s.Profile != nil {
		t.Errorf("state = %+v, want no token and no profile", s)
	}
	if len(notified) != 1 {
		t.Errorf("notifications = %d, want 1", len(notified))
	}
}

func TestResync_Unchanged_DoesNotNotify(t *testing.T) {
	c, _ := newTestContainer(t, "abc123")

	calls := 0
	c.Subscribe(func(State) { calls++ })

	s, err := c.Resync(context.Background())
	if err != nil {
		t.Fatalf("Resync returned error: %v", err)
	}
	if s.Token != "abc123" || calls != 0 {
		t.Errorf("token = %q, notifications = %d; want abc123/0", s.Token, calls)
	}
}

func TestResync_StoreError_KeepsMemoryState(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: credential.NewMemoryBackend()}
	store := credential.NewStore(backend, "ctx-1")
	_ = store.Write(context.Background(), "abc123")
	c, err := NewContainer(context.Background(), store)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	backend.getErr = errors.New("store down")
	s, err := c.Resync(context.Background())
	if err == nil {
		t.Fatal("expected error from Resync")
	}
	if s.Token != "abc123" {
		t.Errorf("Token = %q, want abc123 kept in memory", s.Token)
	}
}
