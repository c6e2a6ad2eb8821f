// Package model はドメインモデルを定義する。
package model

// UserProfile はログイン中の管理者のプロフィールを表す。
// バックエンドの GET /user の応答をそのまま保持する。
type UserProfile struct {
	ID    FlexibleID `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  string     `json:"role,omitempty"`
}

// DisplayName は画面表示用の名前を返す。名前が空の場合はメールアドレスを返す。
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}
