package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Recorder はAPI呼び出しのメトリクス記録先。
// statusはトランスポートエラー時に0となる。
type Recorder interface {
	RecordAPIRequest(method string, status int, duration time.Duration)
}

type startTimeKey struct{}

// WithMetrics はAPI呼び出しの件数とレイテンシを記録するインターセプターを組み込む。
func WithMetrics(rec Recorder) Option {
	onRequest := func(req *http.Request) (*http.Request, error) {
		ctx := context.WithValue(req.Context(), startTimeKey{}, time.Now())
		return req.WithContext(ctx), nil
	}
	onResponse := func(req *http.Request, resp *Response, err error) (*Response, error) {
		start, ok := req.Context().Value(startTimeKey{}).(time.Time)
		if !ok {
			return resp, err
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		rec.RecordAPIRequest(req.Method, status, time.Since(start))
		return resp, err
	}
	return func(c *Client) {
		WithRequestInterceptor(onRequest)(c)
		WithResponseInterceptor(onResponse)(c)
	}
}

// loggingInterceptor は失敗した呼び出しを構造化ログに出力する。
// 5xxとトランスポートエラーはError、それ以外の失敗はWarnで記録する。
func loggingInterceptor(logger *slog.Logger) ResponseInterceptor {
	return func(req *http.Request, resp *Response, err error) (*Response, error) {
		if err == nil {
			return resp, nil
		}

		status := StatusCode(err)
		level := slog.LevelWarn
		if status == 0 || status >= 500 {
			level = slog.LevelError
		}

		logger.Log(req.Context(), level, "バックエンドAPIの呼び出しに失敗しました",
			slog.String("method", req.Method),
			slog.String("path", apiPath(req)),
			slog.Int("http_status", status),
			slog.String("error", err.Error()),
		)
		return resp, err
	}
}
