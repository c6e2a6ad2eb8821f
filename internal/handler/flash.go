package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "flash"

// フラッシュメッセージの種類。
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash は次のページ表示で一度だけ表示する通知。
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FlashStore はフラッシュメッセージを短命のCookieで受け渡す。
type FlashStore struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int
}

// Set はフラッシュメッセージを保存する。空のメッセージは無視する。
func (s FlashStore) Set(w http.ResponseWriter, kind, message string) {
	if message == "" {
		return
	}
	raw, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Domain:   s.CookieDomain,
		MaxAge:   s.maxAge(),
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop はフラッシュメッセージを読み出して削除する。ない場合や壊れている場合はnil。
func (s FlashStore) Pop(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Domain:   s.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	if f.Kind != FlashSuccess {
		f.Kind = FlashError
	}
	return &f
}

func (s FlashStore) maxAge() int {
	if s.MaxAge > 0 {
		return s.MaxAge
	}
	return 60
}
