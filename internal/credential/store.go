// Package credential はアクセストークンの永続化を提供する。
//
// トークンはブラウジングコンテキストごとのスコープで、固定キー ACCESS_TOKEN の
// 1組のキー・バリューとして保存される。内容は不透明な文字列として扱い、検証しない。
package credential

import (
	"context"
	"errors"
	"fmt"
)

// Key はトークンを保存するキー。
const Key = "ACCESS_TOKEN"

// ErrEmptyScope はスコープ未指定でストアを使用しようとした場合のエラー。
var ErrEmptyScope = errors.New("credential scope must not be empty")

// Backend は永続キー・バリューストアのインターフェース。
// scopeはブラウジングコンテキストIDで、異なるスコープ間で値は共有されない。
type Backend interface {
	// Get は値を取得する。存在しない場合はok=falseを返す。
	Get(ctx context.Context, scope, key string) (value string, ok bool, err error)
	// Set は値を上書き保存する。
	Set(ctx context.Context, scope, key, value string) error
	// Delete は値を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, scope, key string) error
}

// Store は1つのブラウジングコンテキストのトークンを保持するストア。
type Store struct {
	backend Backend
	scope   string
}

// NewStore はscopeに束縛されたStoreを生成する。
func NewStore(backend Backend, scope string) *Store {
	return &Store{backend: backend, scope: scope}
}

// Scope はストアのスコープ（ブラウジングコンテキストID）を返す。
func (s *Store) Scope() string {
	return s.scope
}

// Read は保存されているトークンを返す。未保存の場合はok=falseを返す。
func (s *Store) Read(ctx context.Context) (string, bool, error) {
	if s.scope == "" {
		return "", false, ErrEmptyScope
	}
	token, ok, err := s.backend.Get(ctx, s.scope, Key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read credential: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Write はトークンを保存する。既存の値は上書きされる。
func (s *Store) Write(ctx context.Context, token string) error {
	if s.scope == "" {
		return ErrEmptyScope
	}
	if err := s.backend.Set(ctx, s.scope, Key, token); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// Clear はトークンを削除する。冪等。
func (s *Store) Clear(ctx context.Context) error {
	if s.scope == "" {
		return ErrEmptyScope
	}
	if err := s.backend.Delete(ctx, s.scope, Key); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
