package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/guard"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

// loginView はログインページの表示内容。
type loginView struct {
	Email  string
	Errors FieldErrors
}

// homeView はトップページの表示内容。
type homeView struct {
	Authorized bool
}

// Home は公開エントリーポイントを描画する。
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	view := homeView{}
	if c, _, ok := h.bind(r); ok {
		view.Authorized = c.Snapshot().Authorized()
	}
	h.render(w, r, http.StatusOK, "home", "Result Management", view)
}

// LoginPage はログインフォームを描画する。
// GET /login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", "Admin Login", loginView{})
}

// Login はログインフォームを処理する。
// POST /login
//
// 成功時はトークンを永続ストアに書き込んでからセッションに反映し、ダッシュボードへ遷移する。
// 応答にトークンが含まれない場合は失敗として扱う。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	c, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	in := parseLoginForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "login", "Admin Login", loginView{Email: in.Email, Errors: errs})
		return
	}

	res, err := api.Login(r.Context(), in)
	if err == nil && res.Token == "" {
		err = errors.New("login response did not include a token")
	}
	if err != nil {
		status := http.StatusUnauthorized
		if isTransport(err) {
			status = http.StatusServiceUnavailable
		}
		slog.Warn("login failed",
			slog.Int("backend_status", apiclient.StatusCode(err)),
			slog.String("error", err.Error()),
		)
		pd := h.pageData(w, r, "Admin Login", loginView{Email: in.Email})
		pd.Flashes = append(pd.Flashes, Flash{Kind: FlashError, Message: h.loginFailureMessage(err)})
		h.renderer.Render(w, status, "login", pd)
		return
	}

	if err := c.Store().Write(r.Context(), res.Token); err != nil {
		h.internalError(w, r, "failed to persist credential", err)
		return
	}
	c.Login(res.Token)

	h.flash.Set(w, FlashSuccess, "Login successful")
	http.Redirect(w, r, guard.DashboardPath, http.StatusSeeOther)
}

// loginFailureMessage はバックエンドのmessageを優先し、なければ既定の文言を返す。
func (h *Handler) loginFailureMessage(err error) string {
	if isTransport(err) {
		return model.NewBackendUnreachableError().Message
	}
	msg := ""
	if status := apiclient.StatusCode(err); status != 0 {
		msg = apiclient.Message(err, "")
		if msg == http.StatusText(status) {
			msg = ""
		}
	}
	return model.NewLoginFailedError(h.sanitizer.Sanitize(msg)).Message
}

// Logout はトークンを永続ストアとセッションの両方から破棄してトップへ戻す。
// POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	if err := c.Logout(r.Context()); err != nil {
		h.internalError(w, r, "failed to clear credential on logout", err)
		return
	}

	h.flash.Set(w, FlashSuccess, "You have been logged out.")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, guard.EntryPath, http.StatusSeeOther)
}

func isTransport(err error) bool {
	var te *apiclient.TransportError
	return errors.As(err, &te)
}
