// Package apiclient はバックエンドREST APIへの唯一の出口となるHTTPクライアントを提供する。
//
// すべての呼び出しはリクエストインターセプターとレスポンスインターセプターを順に通過する。
// 認証トークンの付与と401時のトークン破棄はインターセプターとして実装され、
// 呼び出し側がそれぞれ同じ処理を書く必要はない。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// apiPathPrefix はバックエンドのオリジンに付与するパス。
	apiPathPrefix = "/api"
	// defaultMaxBodySize はレスポンスボディの最大読み取りサイズ。
	defaultMaxBodySize int64 = 10 << 20
	userAgent                = "ResultAdmin/1.0"
)

// RequestInterceptor は送信前のリクエストを加工する。
// エラーを返した場合、リクエストは送信されない。
type RequestInterceptor func(req *http.Request) (*http.Request, error)

// ResponseInterceptor は応答（成功・失敗の両方）を受け取り、加工して次へ渡す。
// errが非nilの場合でも、インターセプターはそれを握りつぶしてはならない。
type ResponseInterceptor func(req *http.Request, resp *Response, err error) (*Response, error)

// Response はボディを読み切ったバックエンド応答。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode はJSONボディをvにデコードする。
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Message はボディのmessageフィールドを返す。存在しない場合は空文字列。
func (r *Response) Message() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	return body.Message
}

// Client はベースURLとインターセプターを保持するHTTPクライアント。
// Withで派生させたクライアントは元のインターセプターを引き継ぐ。
type Client struct {
	baseURL              string
	httpClient           *http.Client
	logger               *slog.Logger
	maxBodySize          int64
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// Option はClientの設定を変更する。
type Option func(c *Client)

// WithRequestInterceptor はリクエストインターセプターを末尾に追加する。
func WithRequestInterceptor(ic RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, ic)
	}
}

// WithResponseInterceptor はレスポンスインターセプターを末尾に追加する。
func WithResponseInterceptor(ic ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, ic)
	}
}

// WithMaxBodySize はレスポンスボディの最大読み取りサイズを設定する。
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// New はClientを生成する。originはバックエンドのオリジン（例: https://api.example.edu）で、
// 実際のベースURLは origin + "/api" になる。
// 失敗応答のログ出力インターセプターは常に先頭に組み込まれる。
func New(origin string, httpClient *http.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	base, err := buildBaseURL(origin)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:     base,
		httpClient:  httpClient,
		logger:      logger,
		maxBodySize: defaultMaxBodySize,
	}
	c.responseInterceptors = append(c.responseInterceptors, loggingInterceptor(logger))

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL は origin + "/api" のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// With はインターセプターを追加した派生クライアントを返す。元のクライアントは変更されない。
func (c *Client) With(opts ...Option) *Client {
	derived := *c
	derived.requestInterceptors = append([]RequestInterceptor(nil), c.requestInterceptors...)
	derived.responseInterceptors = append([]ResponseInterceptor(nil), c.responseInterceptors...)
	for _, opt := range opts {
		opt(&derived)
	}
	return &derived
}

// Do はリクエストを送信する。bodyが非nilの場合はJSONとして送信する。
//
// 2xx以外のステータスは *ResponseError として返る。
// レスポンスインターセプターの副作用（401時のトークン破棄など）は
// Doが戻る前にすべて完了している。
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	for _, ic := range c.requestInterceptors {
		req, err = ic(req)
		if err != nil {
			return nil, fmt.Errorf("request interceptor rejected %s %s: %w", method, path, err)
		}
	}

	resp, err := c.send(req)

	for _, ic := range c.responseInterceptors {
		resp, err = ic(req, resp, err)
	}
	return resp, err
}

// Get はGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post はPOSTリクエストを送信する。
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put はPUTリクエストを送信する。
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete はDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send はリクエストを送信し、ボディを読み切ったResponseを返す。
// トランスポートエラーはstatus 0の *TransportError になる。
func (c *Client) send(req *http.Request) (*Response, error) {
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: apiPath(req), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodySize))
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: apiPath(req), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, newResponseError(req, resp)
	}
	return resp, nil
}

func buildBaseURL(origin string) (string, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return "", fmt.Errorf("api origin must not be empty")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid api origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid api origin scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid api origin: missing host")
	}
	return origin + apiPathPrefix, nil
}

// apiPath はログ・エラー表示用にベースURL以降のパスを返す。
func apiPath(req *http.Request) string {
	p := req.URL.Path
	if i := strings.Index(p, apiPathPrefix+"/"); i >= 0 {
		return p[i+len(apiPathPrefix):]
	}
	return p
}
