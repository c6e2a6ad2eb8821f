package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/guard"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

// profileFailureMessage はプロフィール取得に失敗した場合の通知。
const profileFailureMessage = "Failed to fetch user data"

// LoadProfile は保護領域のミドルウェアで、セッションにプロフィールがなければ
// GET /user で取得して保持する。取得中はLoadingをtrueにする。
// guard.RequireSessionの後に配置する。
func (h *Handler) LoadProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, api, ok := h.bind(r)
		if !ok {
			middleware.WriteInternalServerError(w)
			return
		}

		st := c.Snapshot()
		if !st.Authorized() || st.Profile != nil {
			next.ServeHTTP(w, r)
			return
		}

		c.SetLoading(true)
		profile, err := api.CurrentUser(r.Context())
		c.SetLoading(false)

		if err != nil {
			if apiclient.IsUnauthorized(err) {
				h.expireSession(w, r)
				return
			}
			slog.Warn("failed to fetch user profile",
				slog.String("context_id", c.ID()),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r.WithContext(withNotice(r.Context(), profileFailureMessage)))
			return
		}

		c.SetProfile(profile)
		next.ServeHTTP(w, r)
	})
}

// AdminIndex は保護領域のルートをダッシュボードへ転送する。
// GET /admin
func (h *Handler) AdminIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, guard.DashboardPath, http.StatusSeeOther)
}

// dashboardView はダッシュボードの表示内容。
type dashboardView struct {
	Greeting    string
	Name        string
	Faculties   int
	Departments int
	Courses     int
	Students    model.StudentStats
}

// Dashboard は各一覧の件数を集計して表示する。
// GET /admin/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	c, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	view := dashboardView{Greeting: greeting(h.now().Hour())}
	if p := c.Snapshot().Profile; p != nil {
		view.Name = p.DisplayName()
	}

	faculties, err := api.ListFaculties(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load faculties", "dashboard", "Dashboard", view)
		return
	}
	departments, err := api.ListDepartments(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load departments", "dashboard", "Dashboard", view)
		return
	}
	courses, err := api.ListCourses(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load courses", "dashboard", "Dashboard", view)
		return
	}
	students, err := api.ListStudents(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load students", "dashboard", "Dashboard", view)
		return
	}

	view.Faculties = len(faculties)
	view.Departments = len(departments)
	view.Courses = len(courses)
	view.Students = model.CountStudents(students)

	h.render(w, r, http.StatusOK, "dashboard", "Dashboard", view)
}

func greeting(hour int) string {
	switch {
	case hour < 12:
		return "Good Morning"
	case hour < 17:
		return "Good Afternoon"
	default:
		return "Good Evening"
	}
}
