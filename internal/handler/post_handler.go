package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tellme/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Create は新規投稿を作成する。
	Create(ctx context.Context, userID, content, imageDataURL string) (*model.PostWithAuthors, error)
	// ListAll は全投稿を新しい順に返す。
	ListAll(ctx context.Context) ([]*model.PostWithAuthors, error)
	// ListByUser は指定ユーザーの投稿を新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.PostWithAuthors, error)
	// Get は指定IDの投稿を返す。
	Get(ctx context.Context, postID string) (*model.PostWithAuthors, error)
	// Like は投稿にいいねを追加する。
	Like(ctx context.Context, postID, userID string) (*model.PostWithAuthors, error)
	// Comment は投稿にコメントを追加する。
	Comment(ctx context.Context, postID, userID, content string) (*model.PostWithAuthors, error)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// createPostRequest は投稿作成リクエストのボディ。
// Imageはdata:image形式のbase64文字列（省略可）。
type createPostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

// commentRequest はコメント追加リクエストのボディ。
type commentRequest struct {
	Content string `json:"content"`
}

// CreatePost は投稿作成を処理する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	post, err := h.service.Create(r.Context(), userID, req.Content, req.Image)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toPostResponse(post))
}

// ListPosts は全投稿の一覧を返す。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponses(posts))
}

// ListMyPosts は認証済みユーザー本人の投稿一覧を返す。
// GET /api/posts/me
func (h *PostHandler) ListMyPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	posts, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponses(posts))
}

// GetPost は投稿詳細を返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	post, err := h.service.Get(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponse(post))
}

// LikePost はいいね追加を処理する。
// POST /api/posts/{id}/like
func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	post, err := h.service.Like(r.Context(), postID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponse(post))
}

// CommentPost はコメント追加を処理する。
// POST /api/posts/{id}/comment
func (h *PostHandler) CommentPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	post, err := h.service.Comment(r.Context(), postID, userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponse(post))
}
