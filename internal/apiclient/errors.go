package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// ErrUnauthorized はバックエンドが401を返したことを表す。
// errors.Is(err, ErrUnauthorized) で判定できる。
var ErrUnauthorized = errors.New("unauthorized")

// maxMessageLength はボディから抽出するメッセージの最大長。
const maxMessageLength = 200

// ResponseError はバックエンドが2xx以外のステータスを返した場合のエラー。
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

// Error はerrorインターフェースを実装する。
func (e *ResponseError) Error() string {
	return fmt.Sprintf("api %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is はステータス401のときErrUnauthorizedと一致する。
func (e *ResponseError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TransportError はネットワーク障害などで応答を受け取れなかった場合のエラー。
type TransportError struct {
	Method string
	Path   string
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	return fmt.Sprintf("api %s %s failed: %v", e.Method, e.Path, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized はerrが401応答に由来するかを返す。
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode はerrに含まれるHTTPステータスを返す。応答がない場合は0。
func StatusCode(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// Message は画面表示用のエラーメッセージを返す。
// 応答がない場合は "Network Error"、メッセージが取れない場合はfallbackを返す。
func Message(err error, fallback string) string {
	var re *ResponseError
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		return fallback
	}
	var te *TransportError
	if errors.As(err, &te) {
		return "Network Error"
	}
	return fallback
}

func newResponseError(req *http.Request, resp *Response) *ResponseError {
	return &ResponseError{
		Method:     req.Method,
		Path:       apiPath(req),
		StatusCode: resp.StatusCode,
		Message:    extractMessage(resp),
		Body:       resp.Body,
	}
}

// extractMessage は失敗応答のボディからメッセージを取り出す。
// JSONはmessage（なければerror）フィールド、HTMLは<title>、それ以外は本文先頭を使う。
// どれも取れない場合はステータステキストを返す。
func extractMessage(resp *Response) string {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	body := bytes.TrimSpace(resp.Body)

	var msg string
	switch {
	case mediaType == "text/html":
		msg = htmlTitle(body)
	case mediaType == "application/json" || (len(body) > 0 && body[0] == '{'):
		msg = jsonMessage(body)
	case strings.HasPrefix(mediaType, "text/"):
		msg = string(body)
	}

	msg = strings.TrimSpace(msg)
	if msg == "" {
		return http.StatusText(resp.StatusCode)
	}
	if r := []rune(msg); len(r) > maxMessageLength {
		msg = string(r[:maxMessageLength])
	}
	return msg
}

func jsonMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Error.(string); ok {
		return s
	}
	return ""
}

// htmlTitle はプロキシ等が返すHTMLエラーページから<title>のテキストを取り出す。
func htmlTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = string(name) == "title"
		case html.TextToken:
			if inTitle {
				return string(z.Text())
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}
