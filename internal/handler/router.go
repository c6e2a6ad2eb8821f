package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/resultadmin/internal/guard"
	"github.com/hitoshi/resultadmin/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Handler *Handler

	// ミドルウェア依存
	Logger          *slog.Logger
	BrowsingContext middleware.BrowsingContextConfig
	CSRF            middleware.CSRFConfig
	Sessions        middleware.SessionResolver
	RateLimiter     *middleware.RateLimiter
	GuardRecorder   guard.Recorder

	// TrustProxyHeaders がtrueならX-Forwarded-For等からクライアントアドレスを得る。
	// リバースプロキシの背後でのみ有効にする。
	TrustProxyHeaders bool

	// 運用エンドポイント
	HealthChecks map[string]HealthCheck
	Metrics      http.Handler
}

// NewRouter は全ページのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Recovery → BrowsingContext → Logging → SecurityHeaders → Session → RateLimit(General) → CSRF
//
// /health と /metrics はブラウジングコンテキストを発行しないようチェーンの外に配置する。
// 保護領域（/admin）ではさらに RequireSession → LoadProfile を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecks, 5*time.Second))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Mount("/", newPageRouter(deps, logger))
	return r
}

// newPageRouter はブラウザ向けページのルーターを構成する。
func newPageRouter(deps *RouterDeps, logger *slog.Logger) http.Handler {
	h := deps.Handler

	r := chi.NewRouter()
	r.Use(middleware.NewBrowsingContextMiddleware(deps.BrowsingContext))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.BrowsingContext.CookieSecure))
	r.Use(middleware.NewSessionMiddleware(deps.Sessions))
	r.Use(deps.RateLimiter.GeneralMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

	r.NotFound(h.NotFound)

	// --- 公開ルート ---
	r.Get("/", h.Home)
	r.With(guard.RedirectAuthenticated()).Get("/login", h.LoginPage)
	r.With(deps.RateLimiter.LoginMiddleware(), guard.RedirectAuthenticated()).Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	// --- 保護ルート ---
	r.Route(guard.ProtectedPrefix, func(r chi.Router) {
		r.Use(guard.RequireSession(deps.GuardRecorder))
		r.Use(h.LoadProfile)

		r.Get("/", h.AdminIndex)
		r.Get("/dashboard", h.Dashboard)

		r.Route("/faculties", func(r chi.Router) {
			r.Get("/", h.ListFaculties)
			r.Post("/", h.CreateFaculty)
			r.Get("/new", h.NewFaculty)
			r.Get("/{id}/edit", h.EditFaculty)
			r.Post("/{id}", h.UpdateFaculty)
			r.Post("/{id}/delete", h.DeleteFaculty)
		})

		r.Route("/departments", func(r chi.Router) {
			r.Get("/", h.ListDepartments)
			r.Post("/", h.CreateDepartment)
			r.Get("/new", h.NewDepartment)
			r.Get("/{id}/edit", h.EditDepartment)
			r.Post("/{id}", h.UpdateDepartment)
			r.Post("/{id}/delete", h.DeleteDepartment)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", h.ListCourses)
			r.Post("/", h.CreateCourse)
			r.Get("/new", h.NewCourse)
			r.Get("/{id}/edit", h.EditCourse)
			r.Post("/{id}", h.UpdateCourse)
			r.Post("/{id}/delete", h.DeleteCourse)
		})

		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/new", h.NewStudent)
			r.Get("/{id}/edit", h.EditStudent)
			r.Post("/{id}", h.UpdateStudent)
			r.Post("/{id}/delete", h.DeleteStudent)
		})
	})

	return r
}
