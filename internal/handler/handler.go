package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/guard"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
	"github.com/hitoshi/resultadmin/internal/security"
	"github.com/hitoshi/resultadmin/internal/session"
)

// Config はハンドラーの設定。
type Config struct {
	CookieSecure bool
	CookieDomain string
}

// Handler は管理画面のページハンドラー。
// バックエンド呼び出しはリクエストごとにセッションへ束縛したクライアントで行う。
type Handler struct {
	api       *apiclient.Client
	renderer  *Renderer
	sanitizer *security.MessageSanitizer
	validator *formValidator
	flash     FlashStore
	now       func() time.Time
}

// NewHandler はHandlerを生成する。apiは認証インターセプターを含まない共有クライアント。
func NewHandler(api *apiclient.Client, renderer *Renderer, config Config) *Handler {
	return &Handler{
		api:       api,
		renderer:  renderer,
		sanitizer: security.NewMessageSanitizer(),
		validator: newFormValidator(),
		flash: FlashStore{
			CookieSecure: config.CookieSecure,
			CookieDomain: config.CookieDomain,
		},
		now: time.Now,
	}
}

// bind はリクエストのセッションと、そのセッションの資格情報を使うクライアントを返す。
// セッションミドルウェアを通っていないリクエストではok=false。
func (h *Handler) bind(r *http.Request) (*session.Container, *apiclient.Client, bool) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		slog.Error("handler reached without session", slog.String("path", r.URL.Path))
		return nil, nil, false
	}
	return c, h.api.With(apiclient.WithBearerAuth(c)), true
}

// failureMessage はバックエンド呼び出しの失敗を "<status>: <message>" 形式の文言にする。
// 応答がない場合は "Network Error"。
func (h *Handler) failureMessage(err error, fallback string) string {
	msg := h.sanitizer.Sanitize(apiclient.Message(err, fallback))
	if status := apiclient.StatusCode(err); status != 0 {
		return model.NewBackendError(status, msg).Message
	}
	return msg
}

// expireSession は401を受けたリクエストをエントリーポイントへ戻す。
// トークンはレスポンスインターセプターで既に破棄されている。
func (h *Handler) expireSession(w http.ResponseWriter, r *http.Request) {
	h.flash.Set(w, FlashError, model.NewSessionExpiredError().Message)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, guard.EntryPath, http.StatusSeeOther)
}

// redirectWithFailure は失敗を通知してlocationへ戻す。
func (h *Handler) redirectWithFailure(w http.ResponseWriter, r *http.Request, err error, fallback, location string) {
	if apiclient.IsUnauthorized(err) {
		h.expireSession(w, r)
		return
	}
	h.flash.Set(w, FlashError, h.failureMessage(err, fallback))
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// redirectWithSuccess はバックエンドのメッセージ（なければfallback）を通知してlocationへ戻す。
func (h *Handler) redirectWithSuccess(w http.ResponseWriter, r *http.Request, res *apiclient.Result, fallback, location string) {
	msg := fallback
	if res != nil {
		if m := h.sanitizer.Sanitize(res.Message); m != "" {
			msg = m
		}
	}
	h.flash.Set(w, FlashSuccess, msg)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// noticeKey は同じリクエスト内で表示する通知をコンテキストに格納するキー。
type noticeKey struct{}

func withNotice(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, noticeKey{}, msg)
}

func noticeFromContext(ctx context.Context) string {
	msg, _ := ctx.Value(noticeKey{}).(string)
	return msg
}

// renderWithError は一覧の取得に失敗したページを通知付きで描画する。
// 401の場合はエントリーポイントへ戻す。
func (h *Handler) renderWithError(w http.ResponseWriter, r *http.Request, err error, fallback, page, title string, data any) {
	if apiclient.IsUnauthorized(err) {
		h.expireSession(w, r)
		return
	}
	pd := h.pageData(w, r, title, data)
	pd.Flashes = append(pd.Flashes, Flash{Kind: FlashError, Message: h.failureMessage(err, fallback)})
	h.renderer.Render(w, http.StatusOK, page, pd)
}

// NotFound は未定義のパスに対する404ページを描画する。
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", "Page Not Found", model.NewNotFoundError(r.URL.Path))
}

// internalError はページとして内部エラーを返す。詳細はログのみに記録する。
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg,
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
