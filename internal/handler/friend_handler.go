package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tellme/internal/friend"
	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/model"
)

// suggestionLimit は友達候補として返すユーザー数の上限。
const suggestionLimit = 5

// FriendEngineInterface は友達ハンドラーが必要とするエンジンインターフェース。
type FriendEngineInterface interface {
	// SendRequest は友達申請を送信する。
	SendRequest(ctx context.Context, senderID, receiverID string) (*friend.Request, error)
	// AcceptRequest は受信者として友達申請を承認する。
	AcceptRequest(ctx context.Context, userID, requestID string) (*friend.Friendship, error)
	// RejectRequest は受信者として友達申請を拒否する。
	RejectRequest(ctx context.Context, userID, requestID string) error
	// RemoveFriend は友達関係を解消する。
	RemoveFriend(ctx context.Context, userID, friendID string) error
	// ListFriends は指定ユーザーの友達関係を返す。
	ListFriends(ctx context.Context, userID string) ([]friend.Friendship, error)
	// ListPendingRequests は指定ユーザー宛の保留中申請を返す。
	ListPendingRequests(ctx context.Context, userID string) ([]friend.Request, error)
}

// UserDirectory は友達ハンドラーがユーザー参照の展開に使うインターフェース。
type UserDirectory interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByIDs は複数IDのユーザーをまとめて取得する。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	// ListRecentExcluding は指定ID群を除く最近登録のユーザーを返す。
	ListRecentExcluding(ctx context.Context, excludeIDs []string, limit int) ([]*model.User, error)
}

// FriendHandler は友達関係のHTTPハンドラー。
// 状態遷移はすべてエンジンに委譲し、ここではユーザー参照の展開と
// HTTPへの変換のみを行う。
type FriendHandler struct {
	engine    FriendEngineInterface
	users     UserDirectory
	collector metrics.MetricsCollector
}

// NewFriendHandler はFriendHandlerを生成する。collectorはnilを許容する。
func NewFriendHandler(engine FriendEngineInterface, users UserDirectory, collector metrics.MetricsCollector) *FriendHandler {
	return &FriendHandler{
		engine:    engine,
		users:     users,
		collector: collector,
	}
}

// friendResponse は友達関係のレスポンス。Userは相手側のユーザー参照。
type friendResponse struct {
	ID        string          `json:"id"`
	User      userRefResponse `json:"user"`
	CreatedAt time.Time       `json:"createdAt"`
}

// friendRequestResponse は友達申請のレスポンス。
type friendRequestResponse struct {
	ID         string          `json:"id"`
	Sender     userRefResponse `json:"sender"`
	ReceiverID string          `json:"receiverId"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ListFriends は認証済みユーザーの友達一覧を返す。
// GET /api/friends
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	friendships, err := h.engine.ListFriends(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	otherIDs := make([]string, 0, len(friendships))
	for _, f := range friendships {
		otherIDs = append(otherIDs, f.Other(userID))
	}

	refs, err := h.lookupRefs(r.Context(), otherIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]friendResponse, 0, len(friendships))
	for _, f := range friendships {
		result = append(result, friendResponse{
			ID:        f.ID,
			User:      refs[f.Other(userID)],
			CreatedAt: f.CreatedAt,
		})
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// ListRequests は認証済みユーザー宛の保留中申請を返す。
// GET /api/friends/requests
func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	requests, err := h.engine.ListPendingRequests(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	senderIDs := make([]string, 0, len(requests))
	for _, req := range requests {
		senderIDs = append(senderIDs, req.SenderID)
	}

	refs, err := h.lookupRefs(r.Context(), senderIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]friendRequestResponse, 0, len(requests))
	for _, req := range requests {
		result = append(result, friendRequestResponse{
			ID:         req.ID,
			Sender:     refs[req.SenderID],
			ReceiverID: req.ReceiverID,
			Status:     string(req.Status),
			CreatedAt:  req.CreatedAt,
		})
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// SendRequest は友達申請の送信を処理する。
// POST /api/friends/request/{userId}
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	receiverID := chi.URLParam(r, "userId")

	// 申請先ユーザーの存在確認はエンジンの責務外
	receiver, err := h.users.FindByID(r.Context(), receiverID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if receiver == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	request, err := h.engine.SendRequest(r.Context(), userID, receiverID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordFriendRequestSent()
	}

	sender, err := h.lookupRefs(r.Context(), []string{userID})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, friendRequestResponse{
		ID:         request.ID,
		Sender:     sender[userID],
		ReceiverID: request.ReceiverID,
		Status:     string(request.Status),
		CreatedAt:  request.CreatedAt,
	})
}

// AcceptRequest は友達申請の承認を処理する。
// POST /api/friends/accept/{requestId}
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestId")

	friendship, err := h.engine.AcceptRequest(r.Context(), userID, requestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordFriendRequestResolved("accepted")
	}

	refs, err := h.lookupRefs(r.Context(), []string{friendship.Other(userID)})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, friendResponse{
		ID:        friendship.ID,
		User:      refs[friendship.Other(userID)],
		CreatedAt: friendship.CreatedAt,
	})
}

// RejectRequest は友達申請の拒否を処理する。
// POST /api/friends/reject/{requestId}
func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestId")

	if err := h.engine.RejectRequest(r.Context(), userID, requestID); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordFriendRequestResolved("rejected")
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveFriend は友達関係の解消を処理する。
// DELETE /api/friends/{friendId}
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	friendID := chi.URLParam(r, "friendId")

	if err := h.engine.RemoveFriend(r.Context(), userID, friendID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Suggestions は友達候補を返す。
// 本人と既存の友達を除いた、最近登録のユーザー最大5件。
// GET /api/friends/suggestions
func (h *FriendHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	friendships, err := h.engine.ListFriends(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	excludeIDs := make([]string, 0, len(friendships)+1)
	excludeIDs = append(excludeIDs, userID)
	for _, f := range friendships {
		excludeIDs = append(excludeIDs, f.Other(userID))
	}

	users, err := h.users.ListRecentExcluding(r.Context(), excludeIDs, suggestionLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]userRefResponse, 0, len(users))
	for _, u := range users {
		result = append(result, userRefResponse{
			ID:             u.ID,
			Name:           u.Name,
			ProfilePicture: u.ProfilePicture,
		})
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// lookupRefs はユーザーIDの集合をユーザー参照のマップに展開する。
// 存在しないIDはIDのみの参照になる。
func (h *FriendHandler) lookupRefs(ctx context.Context, ids []string) (map[string]userRefResponse, error) {
	users, err := h.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]userRefResponse, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			refs[id] = userRefResponse{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
		} else {
			refs[id] = userRefResponse{ID: id}
		}
	}
	return refs, nil
}
