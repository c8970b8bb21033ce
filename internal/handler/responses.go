// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tellme/internal/middleware"
	"github.com/hitoshi/tellme/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュは含めない。
type userResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

// userRefResponse は投稿・コメント・友達に埋め込むユーザー参照のレスポンス。
type userRefResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        string          `json:"id"`
	User      userRefResponse `json:"user"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
}

// postResponse は投稿のAPIレスポンス。
// 作者とコメント作者はユーザー参照として展開済み。
type postResponse struct {
	ID        string            `json:"id"`
	User      userRefResponse   `json:"user"`
	Content   string            `json:"content"`
	Image     string            `json:"image"`
	Likes     []string          `json:"likes"`
	Comments  []commentResponse `json:"comments"`
	CreatedAt time.Time         `json:"createdAt"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Bio:            user.Bio,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
}

// toUserRefResponse はmodel.UserRefからAPIレスポンスに変換する。
func toUserRefResponse(ref model.UserRef) userRefResponse {
	return userRefResponse{
		ID:             ref.ID,
		Name:           ref.Name,
		ProfilePicture: ref.ProfilePicture,
	}
}

// toPostResponse は展開済み投稿からAPIレスポンスに変換する。
func toPostResponse(post *model.PostWithAuthors) postResponse {
	likes := post.Likes
	if likes == nil {
		likes = []string{}
	}

	comments := make([]commentResponse, 0, len(post.Comments))
	for _, c := range post.Comments {
		comments = append(comments, commentResponse{
			ID:        c.ID,
			User:      toUserRefResponse(post.CommentAuthors[c.UserID]),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}

	return postResponse{
		ID:        post.ID,
		User:      toUserRefResponse(post.Author),
		Content:   post.Content,
		Image:     post.Image,
		Likes:     likes,
		Comments:  comments,
		CreatedAt: post.CreatedAt,
	}
}

// toPostResponses は展開済み投稿のスライスを変換する。常に非nilを返す。
func toPostResponses(posts []*model.PostWithAuthors) []postResponse {
	result := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		result = append(result, toPostResponse(p))
	}
	return result
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 取得できない場合は401を書き込み、falseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case "INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	case "USER_NOT_FOUND", "POST_NOT_FOUND", "FRIEND_REQUEST_NOT_FOUND", "FRIENDSHIP_NOT_FOUND":
		return http.StatusNotFound
	case "EMAIL_TAKEN", "INVALID_EMAIL", "PASSWORD_TOO_SHORT",
		"NAME_REQUIRED", "CONTENT_REQUIRED",
		"DUPLICATE_LIKE", "INVALID_IMAGE", "IMAGE_TOO_LARGE",
		"SELF_FRIEND_REQUEST", "DUPLICATE_FRIEND_REQUEST", "ALREADY_FRIENDS",
		"FRIEND_REQUEST_NOT_PENDING", "INVALID_URL":
		return http.StatusBadRequest
	case "SSRF_BLOCKED":
		return http.StatusForbidden
	case "FETCH_FAILED":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
