package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/tellme/internal/model"
)

// maxMultipartMemory はmultipart解析でメモリに保持する上限。
const maxMultipartMemory = 8 << 20 // 8 MiB

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateProfile は名前と自己紹介を更新する。
	UpdateProfile(ctx context.Context, userID, name, bio string) (*model.User, error)
	// Stats は投稿数・獲得いいね数・獲得コメント数を返す。
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
	// UploadAvatar はmultipartでアップロードされた画像をアバターとして保存する。
	UploadAvatar(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*model.User, error)
	// UploadAvatarBase64 はdata:image形式の画像をアバターとして設定する。
	UploadAvatarBase64(ctx context.Context, userID, imageDataURL string) (*model.User, error)
	// UploadAvatarFromURL は外部URLから画像を取得してアバターとして保存する。
	UploadAvatarFromURL(ctx context.Context, userID, rawURL string) (*model.User, error)
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// avatarBase64Request はbase64アバター設定リクエストのボディ。
type avatarBase64Request struct {
	ImageBase64 string `json:"imageBase64"`
}

// avatarURLRequest はURL指定アバター設定リクエストのボディ。
type avatarURLRequest struct {
	URL string `json:"url"`
}

// avatarResponse はアバター更新成功時のレスポンス。
type avatarResponse struct {
	ProfilePicture string       `json:"profilePicture"`
	User           userResponse `json:"user"`
}

// statsResponse はユーザー統計のレスポンス。
type statsResponse struct {
	Posts    int `json:"posts"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// UpdateProfile はプロフィール更新を処理する。
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.Bio)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}

// Stats はユーザー統計を返す。
// GET /api/users/me/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statsResponse{
		Posts:    stats.Posts,
		Likes:    stats.Likes,
		Comments: stats.Comments,
	})
}

// UploadAvatar はmultipartでのアバターアップロードを処理する。
// POST /api/users/me/avatar （フィールド名 "image"）
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError("multipartフォームの解析に失敗しました"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError("imageフィールドがありません"))
		return
	}
	defer file.Close()

	user, err := h.service.UploadAvatar(r.Context(), userID, file, header)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, avatarResponse{
		ProfilePicture: user.ProfilePicture,
		User:           toUserResponse(user),
	})
}

// UploadAvatarBase64 はbase64でのアバター設定を処理する。
// POST /api/users/me/avatar-base64
func (h *UserHandler) UploadAvatarBase64(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req avatarBase64Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, err := h.service.UploadAvatarBase64(r.Context(), userID, req.ImageBase64)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, avatarResponse{
		ProfilePicture: user.ProfilePicture,
		User:           toUserResponse(user),
	})
}

// UploadAvatarFromURL はURL指定でのアバター設定を処理する。
// POST /api/users/me/avatar-url
func (h *UserHandler) UploadAvatarFromURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req avatarURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	user, err := h.service.UploadAvatarFromURL(r.Context(), userID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, avatarResponse{
		ProfilePicture: user.ProfilePicture,
		User:           toUserResponse(user),
	})
}
