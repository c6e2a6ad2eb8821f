// Package handler はHTMLページを返すHTTPハンドラーを提供する。
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
	"github.com/hitoshi/resultadmin/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// PageData はすべてのページテンプレートに渡す値。
type PageData struct {
	Title     string
	Path      string
	CSRFField string
	CSRFToken string
	Flashes   []Flash
	User      *model.UserProfile
	Loading   bool
	Data      any
}

// Renderer は埋め込みテンプレートからページを描画する。
// ページごとにレイアウトを複製したテンプレートを起動時に1回だけ構築する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	layout, err := template.New(path.Base(layoutTemplate)).Funcs(templateFuncs).ParseFS(templateFS, layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout template: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", file, err)
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render はページをレイアウトに埋め込んで書き込む。
// 実行時エラーで中途半端なHTMLを返さないよう、バッファに描画してから送信する。
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	t, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown page template", slog.String("page", page))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

var templateFuncs = template.FuncMap{
	"isProtected": func(p string) bool {
		return strings.HasPrefix(p, "/admin")
	},
	"navActive": func(current, prefix string) bool {
		return current == prefix || strings.HasPrefix(current, prefix+"/")
	},
}

// pageData はリクエストのコンテキストから共通のPageDataを組み立てる。
// フラッシュメッセージはここで読み出され、Cookieから削除される。
// 同じリクエスト内の通知（withNotice）はその後ろに並ぶ。
func (h *Handler) pageData(w http.ResponseWriter, r *http.Request, title string, data any) PageData {
	pd := PageData{
		Title:     title,
		Path:      r.URL.Path,
		CSRFField: middleware.CSRFFormField,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Data:      data,
	}
	if f := h.flash.Pop(w, r); f != nil {
		pd.Flashes = append(pd.Flashes, *f)
	}
	if msg := noticeFromContext(r.Context()); msg != "" {
		pd.Flashes = append(pd.Flashes, Flash{Kind: FlashError, Message: msg})
	}
	if c, ok := session.FromContext(r.Context()); ok {
		st := c.Snapshot()
		pd.User = st.Profile
		pd.Loading = st.Loading
	}
	return pd
}

// render はPageDataを組み立ててページを描画する。
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	h.renderer.Render(w, status, page, h.pageData(w, r, title, data))
}
