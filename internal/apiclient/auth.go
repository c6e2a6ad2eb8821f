package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// invalidateTimeout は401後のトークン破棄の上限時間。
// 破棄はリクエストのキャンセルに影響されない。
const invalidateTimeout = 5 * time.Second

// Credentials は認証インターセプターが参照する資格情報の出入口。
// session.Container がこれを満たす。
type Credentials interface {
	// Token は永続ストアに保存されたトークンを返す。未保存ならok=false。
	Token(ctx context.Context) (token string, ok bool, err error)
	// Invalidate は永続ストアとメモリ上のセッションの両方からトークンを破棄する。
	Invalidate(ctx context.Context) error
}

// BearerAuth は認証用のリクエスト・レスポンスインターセプターの組を返す。
//
// リクエスト側はトークンがあれば "Authorization: Bearer <token>" を設定し、
// なければヘッダー自体を付けない。
// レスポンス側はステータスがちょうど401のときだけトークンを破棄し、
// 元のエラーは必ずそのまま呼び出し元へ返す。
func BearerAuth(creds Credentials) (RequestInterceptor, ResponseInterceptor) {
	onRequest := func(req *http.Request) (*http.Request, error) {
		token, ok, err := creds.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to read credential: %w", err)
		}
		if !ok {
			req.Header.Del("Authorization")
			return req, nil
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}

	onResponse := func(req *http.Request, resp *Response, err error) (*Response, error) {
		if err == nil || StatusCode(err) != http.StatusUnauthorized {
			return resp, err
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), invalidateTimeout)
		defer cancel()
		if invErr := creds.Invalidate(ctx); invErr != nil {
			return resp, errors.Join(err, fmt.Errorf("failed to invalidate credential: %w", invErr))
		}
		return resp, err
	}

	return onRequest, onResponse
}

// WithBearerAuth はBearerAuthのインターセプターを組み込むOption。
func WithBearerAuth(creds Credentials) Option {
	onRequest, onResponse := BearerAuth(creds)
	return func(c *Client) {
		WithRequestInterceptor(onRequest)(c)
		WithResponseInterceptor(onResponse)(c)
	}
}
