package apiclient

import (
	"context"
	"fmt"

	"github.com/hitoshi/resultadmin/internal/model"
)

// LoginResult はログイン応答。
type LoginResult struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Login はメールアドレスとパスワードでログインし、トークンを返す。
// POST /login
// トークンの保存は呼び出し側の責務。
func (c *Client) Login(ctx context.Context, in model.LoginInput) (*LoginResult, error) {
	resp, err := c.Post(ctx, "/login", in)
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CurrentUser はログイン中のユーザーのプロフィールを取得する。
// GET /user
func (c *Client) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	resp, err := c.Get(ctx, "/user")
	if err != nil {
		return nil, err
	}
	var profile model.UserProfile
	if err := decodeObject(resp, "user", &profile); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	return &profile, nil
}
