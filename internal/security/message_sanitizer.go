package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxMessageLength はフラッシュメッセージの最大文字数。
const maxMessageLength = 300

// MessageSanitizer はバックエンドから受け取ったメッセージを画面表示用に整える。
// HTMLタグはすべて除去し、空白を1つにまとめる。
// 出力はプレーンテキストで、エスケープはテンプレート側で行う。
type MessageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerを生成する。
func NewMessageSanitizer() *MessageSanitizer {
	return &MessageSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はmsgからタグを除去したプレーンテキストを返す。
func (s *MessageSanitizer) Sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	text := html.UnescapeString(s.policy.Sanitize(msg))
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > maxMessageLength {
		text = string(r[:maxMessageLength]) + "…"
	}
	return text
}
