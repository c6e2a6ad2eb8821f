// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// BrowsingContextCookieName はブラウジングコンテキストIDを保持するCookieの名前。
const BrowsingContextCookieName = "bctx"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// browsingContextKey はリクエストコンテキストにブラウジングコンテキストIDを格納するためのキー。
var browsingContextKey = contextKey("browsing_context")

// browsingContextIssuedKey はこのリクエストでIDを新規発行したかを格納するキー。
var browsingContextIssuedKey = contextKey("browsing_context_issued")

// BrowsingContextConfig はブラウジングコンテキストCookieの設定。
type BrowsingContextConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int
}

// NewBrowsingContextMiddleware はブラウザごとのIDをHTTP Only Cookieで管理するミドルウェアを返す。
// Cookieがないか値がUUIDでない場合は新しいIDを発行する。
// IDはリクエストコンテキストに注入され、資格情報ストアのスコープとして使われる。
// 新規発行したリクエストではBrowsingContextIssuedがtrueを返す。
func NewBrowsingContextMiddleware(config BrowsingContextConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(BrowsingContextCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}

			ctx := r.Context()
			if id == "" {
				id = uuid.New().String()
				ctx = context.WithValue(ctx, browsingContextIssuedKey, true)
				http.SetCookie(w, &http.Cookie{
					Name:     BrowsingContextCookieName,
					Value:    id,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithBrowsingContextID(ctx, id)))
		})
	}
}

// BrowsingContextIDFromContext はリクエストコンテキストからブラウジングコンテキストIDを取得する。
func BrowsingContextIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(browsingContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("browsing context ID not found in context")
	}
	return id, nil
}

// BrowsingContextIssued はこのリクエストでブラウジングコンテキストIDを新規発行したかを返す。
// Cookieを持ち帰らないクライアントは毎回trueになる。
func BrowsingContextIssued(ctx context.Context) bool {
	issued, _ := ctx.Value(browsingContextIssuedKey).(bool)
	return issued
}

// ContextWithBrowsingContextID はコンテキストにブラウジングコンテキストIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithBrowsingContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, browsingContextKey, id)
}
