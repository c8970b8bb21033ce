package api

import (
	"context"
	"fmt"
	"net/http"
)

// registerRequest は登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register は新規ユーザーを登録する。
// 成功時は発行されたトークンをトークンストアへ保存する。
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.request(ctx, http.MethodPost, "/auth/register", registerRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Set(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return &resp, nil
}

// Login は資格情報でログインする。
// 成功時は発行されたトークンをトークンストアへ保存する。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.request(ctx, http.MethodPost, "/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Set(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return &resp, nil
}

// Logout は保存済みトークンを削除する。サーバー呼び出しは行わない。
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Remove(ctx)
}

// IsAuthenticated はトークンが保存済みかを返す。
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	t, err := c.bearerToken(ctx)
	return err == nil && t != ""
}

// CurrentUser は認証済みユーザーの本人情報を取得する。
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.request(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
