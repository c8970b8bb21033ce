package api

import (
	"context"
	"net/http"
)

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// commentRequest はコメント追加リクエストのボディ。
type commentRequest struct {
	Content string `json:"content"`
}

// Posts は全投稿を新しい順で取得する。
func (c *Client) Posts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.request(ctx, http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// MyPosts は認証済みユーザーの投稿を取得する。
func (c *Client) MyPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.request(ctx, http.MethodGet, "/posts/me", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost は指定IDの投稿を取得する。
func (c *Client) GetPost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := c.request(ctx, http.MethodGet, "/posts/"+postID, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost は新しい投稿を作成する。
// imageDataURLが空でない場合はdata:image形式のインライン画像として送信する。
func (c *Client) CreatePost(ctx context.Context, content, imageDataURL string) (*Post, error) {
	var post Post
	err := c.request(ctx, http.MethodPost, "/posts", createPostRequest{
		Content: content,
		Image:   imageDataURL,
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LikePost は投稿にいいねを追加し、更新後の投稿を返す。
// 同一ユーザーの2回目のいいねはHTTPError（DUPLICATE_LIKE）で失敗する。
func (c *Client) LikePost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := c.request(ctx, http.MethodPost, "/posts/"+postID+"/like", nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CommentPost は投稿にコメントを追加し、更新後の投稿を返す。
func (c *Client) CommentPost(ctx context.Context, postID, content string) (*Post, error) {
	var post Post
	err := c.request(ctx, http.MethodPost, "/posts/"+postID+"/comment", commentRequest{Content: content}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// MyStats は認証済みユーザーの投稿・いいね・コメント集計を取得する。
func (c *Client) MyStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.request(ctx, http.MethodGet, "/users/me/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
