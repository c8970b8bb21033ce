package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/tellme/internal/friend"
)

// Friends は認証済みユーザーの友達一覧を取得する。
// サーバー経路が使えない場合はローカルエンジンへフォールバックする。
func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	err := c.request(ctx, http.MethodGet, "/friends", nil, &friends)
	if c.shouldFallBack(err) {
		return c.localFriends(ctx)
	}
	if err != nil {
		return nil, err
	}
	return friends, nil
}

// FriendRequests は認証済みユーザー宛の保留中の友達申請を取得する。
func (c *Client) FriendRequests(ctx context.Context) ([]FriendRequest, error) {
	var requests []FriendRequest
	err := c.request(ctx, http.MethodGet, "/friends/requests", nil, &requests)
	if c.shouldFallBack(err) {
		return c.localFriendRequests(ctx)
	}
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// FriendSuggestions は友達候補の提案を取得する。
// ローカルエンジンはユーザーディレクトリを持たないため、フォールバックしない。
func (c *Client) FriendSuggestions(ctx context.Context) ([]UserRef, error) {
	var suggestions []UserRef
	if err := c.request(ctx, http.MethodGet, "/friends/suggestions", nil, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// SendFriendRequest は指定ユーザーへの友達申請を作成する。
func (c *Client) SendFriendRequest(ctx context.Context, userID string) (*FriendRequest, error) {
	var request FriendRequest
	err := c.request(ctx, http.MethodPost, "/friends/request/"+userID, nil, &request)
	if c.shouldFallBack(err) {
		return c.localSendRequest(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// AcceptFriendRequest は保留中の友達申請を承認する。
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) (*Friend, error) {
	var accepted Friend
	err := c.request(ctx, http.MethodPost, "/friends/accept/"+requestID, nil, &accepted)
	if c.shouldFallBack(err) {
		return c.localAcceptRequest(ctx, requestID)
	}
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}

// RejectFriendRequest は保留中の友達申請を拒否する。
func (c *Client) RejectFriendRequest(ctx context.Context, requestID string) error {
	err := c.request(ctx, http.MethodPost, "/friends/reject/"+requestID, nil, nil)
	if c.shouldFallBack(err) {
		userID, uerr := c.currentUserID(ctx)
		if uerr != nil {
			return err
		}
		return c.fallback.RejectRequest(ctx, userID, requestID)
	}
	return err
}

// RemoveFriend は指定ユーザーとの友達関係を削除する。
func (c *Client) RemoveFriend(ctx context.Context, friendID string) error {
	err := c.request(ctx, http.MethodDelete, "/friends/"+friendID, nil, nil)
	if c.shouldFallBack(err) {
		userID, uerr := c.currentUserID(ctx)
		if uerr != nil {
			return err
		}
		return c.fallback.RemoveFriend(ctx, userID, friendID)
	}
	return err
}

// shouldFallBack はサーバー経路の失敗がローカルエンジンで補えるものかを返す。
// 到達不能（NetworkError）と未実装登録のみが対象で、サーバーが返した
// 業務エラー（HTTPError）は呼び出し側へそのまま伝える。
func (c *Client) shouldFallBack(err error) bool {
	if err == nil || c.fallback == nil {
		return false
	}
	if errors.Is(err, ErrEndpointNotImplemented) {
		return true
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func (c *Client) localFriends(ctx context.Context) ([]Friend, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	friendships, err := c.fallback.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]Friend, 0, len(friendships))
	for _, f := range friendships {
		result = append(result, Friend{
			ID:        f.ID,
			User:      UserRef{ID: f.Other(userID)},
			CreatedAt: f.CreatedAt,
		})
	}
	return result, nil
}

func (c *Client) localFriendRequests(ctx context.Context) ([]FriendRequest, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	requests, err := c.fallback.ListPendingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]FriendRequest, 0, len(requests))
	for _, r := range requests {
		result = append(result, toFriendRequest(r))
	}
	return result, nil
}

func (c *Client) localSendRequest(ctx context.Context, receiverID string) (*FriendRequest, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	request, err := c.fallback.SendRequest(ctx, userID, receiverID)
	if err != nil {
		return nil, err
	}
	converted := toFriendRequest(*request)
	return &converted, nil
}

func (c *Client) localAcceptRequest(ctx context.Context, requestID string) (*Friend, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	friendship, err := c.fallback.AcceptRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	return &Friend{
		ID:        friendship.ID,
		User:      UserRef{ID: friendship.Other(userID)},
		CreatedAt: friendship.CreatedAt,
	}, nil
}

// toFriendRequest はエンジンの申請をAPIレスポンス形式へ変換する。
// ローカルにはユーザーディレクトリがないため、送信者はidのみの参照になる。
func toFriendRequest(r friend.Request) FriendRequest {
	return FriendRequest{
		ID:         r.ID,
		Sender:     UserRef{ID: r.SenderID},
		ReceiverID: r.ReceiverID,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
	}
}
