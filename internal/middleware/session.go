package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/resultadmin/internal/model"
	"github.com/hitoshi/resultadmin/internal/session"
)

// SessionResolver はブラウジングコンテキストIDからセッションを取得する。
// session.Registryがこれを満たす。
type SessionResolver interface {
	Get(ctx context.Context, id string) (*session.Container, error)
	// Transient は登録も永続ストアの読み込みもしない未認証のContainerを返す。
	Transient(id string) *session.Container
}

// NewSessionMiddleware はブラウジングコンテキストのセッションを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// NewBrowsingContextMiddlewareの後に配置する。
// このリクエストでIDを発行した場合は未認証の一時Containerを注入し、
// Cookieが戻ってきた時点で初めてRegistryに登録する。
// 認証の有無はここでは判定せず、guard.RequireSessionに委ねる。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := BrowsingContextIDFromContext(r.Context())
			if err != nil {
				slog.Error("session middleware used without browsing context",
					slog.String("path", r.URL.Path),
				)
				WriteError(w, r, http.StatusInternalServerError, model.NewInternalError())
				return
			}

			if BrowsingContextIssued(r.Context()) {
				next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), resolver.Transient(id))))
				return
			}

			c, err := resolver.Get(r.Context(), id)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("context_id", id),
					slog.String("error", err.Error()),
				)
				WriteError(w, r, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
				return
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), c)))
		})
	}
}
