// Package guard は保護されたルートへのナビゲーションを制御する。
//
// 判定はセッション状態とパスのみに依存する純粋関数Evaluateで行い、
// ミドルウェアはその結果に従ってリダイレクトまたは後続ハンドラーの実行を行う。
package guard

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/resultadmin/internal/session"
)

const (
	// EntryPath は未認証時のリダイレクト先となる公開エントリーポイント。
	EntryPath = "/"
	// DashboardPath は認証済みユーザーのログイン後の遷移先。
	DashboardPath = "/admin/dashboard"
	// ProtectedPrefix は保護領域のパス接頭辞。
	ProtectedPrefix = "/admin"
)

// Action はガードの判定結果の種類。
type Action int

const (
	// Render は要求されたページをそのまま表示する。
	Render Action = iota
	// Redirect はLocationへ遷移させる。
	Redirect
)

// Decision はガードの判定結果。
type Decision struct {
	Action   Action
	Location string
}

// IsProtected はpathが保護領域に属するかを返す。
func IsProtected(path string) bool {
	return path == ProtectedPrefix || strings.HasPrefix(path, ProtectedPrefix+"/")
}

// Evaluate はセッション状態とパスから遷移を判定する。
// トークンのない状態で保護領域を要求した場合のみEntryPathへのRedirectとなる。
// Loadingの値は判定に影響しない。
func Evaluate(state session.State, path string) Decision {
	if IsProtected(path) && !state.Authorized() {
		return Decision{Action: Redirect, Location: EntryPath}
	}
	return Decision{Action: Render}
}

// Recorder はガードによるリダイレクトの記録先。
type Recorder interface {
	RecordGuardRedirect()
}

// RequireSession は保護領域のミドルウェアを返す。
// 未認証の場合は303 See Otherでエントリーポイントへ遷移させ、
// 保護されたURLを履歴に残さない。
// session.NewContextでContainerが注入されていないリクエストは未認証として扱う。
// メモリ上で認証済みの場合は永続ストアと再同期し、別のレプリカでのログアウトや
// クリーンアップで削除されたトークンを検出する。ストアを読めなければメモリ上の状態で判定する。
func RequireSession(rec Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var state session.State
			if c, ok := session.FromContext(r.Context()); ok {
				state = c.Snapshot()
				if state.Authorized() {
					synced, err := c.Resync(r.Context())
					if err != nil {
						slog.Warn("failed to resync session with credential store",
							slog.String("context_id", c.ID()),
							slog.String("error", err.Error()),
						)
					}
					state = synced
				}
			}

			d := Evaluate(state, r.URL.Path)
			if d.Action == Redirect {
				if rec != nil {
					rec.RecordGuardRedirect()
				}
				w.Header().Set("Cache-Control", "no-store")
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RedirectAuthenticated は認証済みユーザーがログインページを開いた場合に
// ダッシュボードへ遷移させるミドルウェアを返す。
func RedirectAuthenticated() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, ok := session.FromContext(r.Context()); ok && c.Snapshot().Authorized() {
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
