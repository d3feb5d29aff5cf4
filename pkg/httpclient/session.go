package httpclient

import (
	"context"
	"time"
)

// Me は/api/v1/meのレスポンス。
type Me struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Health は/healthのレスポンス。
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Login はemailでログインし、セッションクッキーをクッキージャーに保存する。
func (c *Client) Login(ctx context.Context, email string) error {
	var res successResponse
	return c.PostJSON(ctx, "/session", map[string]string{"email": email}, &res)
}

// Logout はセッションクッキーを削除する。
func (c *Client) Logout(ctx context.Context) error {
	var res successResponse
	return c.DeleteJSON(ctx, "/session", &res)
}

// Me は認証済みの識別子を取得する。未ログインの場合はIsUnauthorizedを満たすエラーを返す。
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.GetJSON(ctx, "/api/v1/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Health はゲートウェイのヘルスチェックを行う。
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.GetJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}
