package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, backend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeBackendFailed      = "BACKEND_FAILED"
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeCSRF               = "CSRF_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// NewLoginFailedError はログイン失敗エラーを生成する。
// バックエンドがメッセージを返さなかった場合は既定の文言を使う。
func NewLoginFailedError(message string) *APIError {
	if message == "" {
		message = "Login failed. Please check your credentials."
	}
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Your session has expired.",
		Category: "auth",
		Action:   "Please log in again.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewBackendError はバックエンドが失敗ステータスを返した場合のエラーを生成する。
func NewBackendError(status int, message string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendFailed,
		Message:  fmt.Sprintf("%d: %s", status, message),
		Category: "backend",
		Action:   "Try again later. If the problem persists, contact the administrator.",
	}
}

// NewBackendUnreachableError はバックエンドに到達できない場合のエラーを生成する。
func NewBackendUnreachableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnreachable,
		Message:  "Network Error",
		Category: "backend",
		Action:   "Check your connection and try again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Reload the page and submit the form again.",
	}
}

// NewNotFoundError はページ未検出エラーを生成する。
func NewNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("Page not found: %s", path),
		Category: "system",
		Action:   "Check the address or go back to the dashboard.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}

// NewStoreUnavailableError は資格情報ストアに到達できない場合のエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Session storage is unavailable.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}
