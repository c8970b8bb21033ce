// Package api はTellMe REST APIのGoクライアントを提供する。
//
// Client は明示的に構築されたインスタンスであり、ベースURL・トークンストア・
// HTTPクライアントを自身で保持する。グローバル状態には依存しない。
// すべての呼び出しはcontextを受け取り、エラーは型付きで返す
// （NetworkError / HTTPError / NonJSONResponseError / ErrEndpointNotImplemented）。
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/tellme/internal/client/token"
	"github.com/hitoshi/tellme/internal/friend"
)

const (
	// DefaultLocalBaseURL はローカル開発サーバーのベースURL。
	DefaultLocalBaseURL = "http://localhost:8080/api"
	// DefaultRemoteBaseURL はデプロイ済みサーバーのベースURL。
	DefaultRemoteBaseURL = "https://tellme-backend.onrender.com/api"

	defaultTimeout = 15 * time.Second
)

// ResolveBaseURL はホスト名からAPIベースURLを決定する。
// ループバックホストはローカル開発サーバー、それ以外はデプロイ済みサーバーを指す。
func ResolveBaseURL(hostname string) string {
	if hostname == "localhost" || strings.Contains(hostname, "127.0.0.1") {
		return DefaultLocalBaseURL
	}
	return DefaultRemoteBaseURL
}

// Client はTellMe APIのゲートウェイクライアント。
type Client struct {
	baseURL string
	tokens  token.Store
	hc      *http.Client

	// 未実装と登録されたエンドポイントのプレフィックス。
	// 一致する呼び出しはネットワークに出ずErrEndpointNotImplementedを返す。
	skip []string

	// 友達操作のローカルフォールバックエンジン。nilの場合はフォールバックしない。
	fallback *friend.Engine
}

// NewClient はClientの新しいインスタンスを生成する。
// hcがnilの場合は既定のタイムアウト付きクライアントを使用する。
func NewClient(baseURL string, tokens token.Store, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		hc:      hc,
	}
}

// BaseURL は設定されたAPIベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// MarkUnimplemented は未実装エンドポイントのプレフィックスを登録する。
// 登録されたエンドポイントへの呼び出しは即時にErrEndpointNotImplementedを返す。
func (c *Client) MarkUnimplemented(prefixes ...string) {
	c.skip = append(c.skip, prefixes...)
}

// SetFriendFallback は友達操作のローカルフォールバックエンジンを設定する。
// サーバー呼び出しがNetworkErrorまたはErrEndpointNotImplementedで失敗した場合のみ
// エンジンが使われる。
func (c *Client) SetFriendFallback(engine *friend.Engine) {
	c.fallback = engine
}

func (c *Client) isUnimplemented(endpoint string) bool {
	for _, p := range c.skip {
		if strings.HasPrefix(endpoint, p) {
			return true
		}
	}
	return false
}

// bearerToken は保存済みトークンを返す。未保存の場合は空文字列を返す。
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	t, err := c.tokens.Get(ctx)
	if errors.Is(err, token.ErrNoToken) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read stored token: %w", err)
	}
	return t, nil
}

// request はJSONリクエストを送信し、レスポンスをoutへデコードする。
// outがnilの場合はボディを破棄する。
func (c *Client) request(ctx context.Context, method, endpoint string, body, out any) error {
	if c.isUnimplemented(endpoint) {
		return fmt.Errorf("%s %s: %w", method, endpoint, ErrEndpointNotImplemented)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

// requestMultipart はmultipart/form-dataリクエストを送信する。
func (c *Client) requestMultipart(ctx context.Context, endpoint string, form io.Reader, contentType string, out any) error {
	if c.isUnimplemented(endpoint) {
		return fmt.Errorf("POST %s: %w", endpoint, ErrEndpointNotImplemented)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, form)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req, out)
}

// do はベアラートークンを付与してリクエストを実行し、レスポンスを分類する。
func (c *Client) do(req *http.Request, out any) error {
	t, err := c.bearerToken(req.Context())
	if err != nil {
		return err
	}
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	// 204はボディを持たない成功
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{URL: req.URL.String(), Err: err}
	}

	// JSONでないレスポンスはステータスに関わらずハードエラー
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return &NonJSONResponseError{StatusCode: resp.StatusCode, ContentType: contentType}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		message := genericFailureMessage
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return &HTTPError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// currentUserID は保存済みトークンのペイロードからユーザーIDを取り出す。
// ローカルフォールバック時にサーバーへ問い合わせずに本人を特定するために使う。
// 署名検証は行わない（サーバー側で検証済みのトークンの再読み取りに過ぎない）。
func (c *Client) currentUserID(ctx context.Context) (string, error) {
	t, err := c.bearerToken(ctx)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", token.ErrNoToken
	}

	parts := strings.Split(t, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode token payload: %w", err)
	}

	var claims struct {
		UserID string `json:"uid"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("failed to parse token payload: %w", err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("token payload has no user id")
	}
	return claims.UserID, nil
}
