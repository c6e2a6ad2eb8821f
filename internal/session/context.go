package session

import "context"

type contextKey struct{}

// NewContext はContainerを格納したコンテキストを返す。
func NewContext(ctx context.Context, c *Container) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext はコンテキストからContainerを取得する。
// セッション解決ミドルウェアを通過したリクエストでのみ有効。
func FromContext(ctx context.Context) (*Container, bool) {
	c, ok := ctx.Value(contextKey{}).(*Container)
	return c, ok && c != nil
}
