package middleware

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/hitoshi/resultadmin/internal/model"
)

// ErrorResponseBody はJSONエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// errorPage はミドルウェアで拒否したブラウザ向けの最小限のページ。
// ハンドラーのレイアウトに依存しないよう、ここで完結させる。
var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Message}}</title></head>
<body>
<main>
<h1>{{.Message}}</h1>
<p>{{.Action}}</p>
<p><a href="/">Back to home</a></p>
</main>
</body>
</html>
`))

// WriteError はAcceptヘッダーに応じてHTMLページかJSONでエラーを返す。
// フォーム送信などブラウザからの遷移にはHTML、それ以外にはJSONを返す。
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	if !acceptsHTML(r) {
		WriteErrorResponse(w, statusCode, apiErr)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	errorPage.Execute(w, apiErr)
}

// WriteErrorResponse は統一フォーマットのJSONエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部エラーのJSONレスポンスを書き込む。
// 詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

func acceptsHTML(r *http.Request) bool {
	return r != nil && strings.Contains(r.Header.Get("Accept"), "text/html")
}
