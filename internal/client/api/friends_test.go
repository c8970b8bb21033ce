package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tellme/internal/auth"
	"github.com/hitoshi/tellme/internal/client/token"
	"github.com/hitoshi/tellme/internal/friend"
)

// newFallbackClient は到達不能なサーバーとローカルエンジンを組み合わせたクライアントを返す。
func newFallbackClient(t *testing.T, userID string) (*Client, *friend.Engine) {
	t.Helper()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // 到達不能にしてNetworkErrorを誘発する

	tokens := token.NewMemoryStore()
	signed, err := auth.GenerateToken(userID, []byte("fallback-secret"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, tokens.Set(context.Background(), signed))

	engine := friend.NewEngine(friend.NewMemoryStore())
	c := NewClient(server.URL+"/api", tokens, nil)
	c.SetFriendFallback(engine)
	return c, engine
}

func TestFriends_ServerUnreachable_FallsBackToLocalEngine(t *testing.T) {
	c, engine := newFallbackClient(t, "alice")
	ctx := context.Background()

	// ローカルエンジンに友達関係を仕込む
	request, err := engine.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = engine.AcceptRequest(ctx, "alice", request.ID)
	require.NoError(t, err)

	friends, err := c.Friends(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].User.ID)
}

func TestFriendRequests_ServerUnreachable_FallsBackToLocalEngine(t *testing.T) {
	c, engine := newFallbackClient(t, "alice")
	ctx := context.Background()

	_, err := engine.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)

	requests, err := c.FriendRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "bob", requests[0].Sender.ID)
	assert.Equal(t, "pending", requests[0].Status)
}

func TestSendFriendRequest_ServerUnreachable_CreatesLocalRequest(t *testing.T) {
	c, engine := newFallbackClient(t, "alice")
	ctx := context.Background()

	request, err := c.SendFriendRequest(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", request.Sender.ID)
	assert.Equal(t, "bob", request.ReceiverID)
	assert.Equal(t, "pending", request.Status)

	// エンジン側にも保留中の申請として現れる
	pending, err := engine.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, request.ID, pending[0].ID)
}

func TestAcceptFriendRequest_ServerUnreachable_AcceptsLocally(t *testing.T) {
	c, engine := newFallbackClient(t, "alice")
	ctx := context.Background()

	request, err := engine.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)

	accepted, err := c.AcceptFriendRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", accepted.User.ID)
}

func TestRemoveFriend_ServerUnreachable_RemovesLocally(t *testing.T) {
	c, engine := newFallbackClient(t, "alice")
	ctx := context.Background()

	request, err := engine.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = engine.AcceptRequest(ctx, "alice", request.ID)
	require.NoError(t, err)

	require.NoError(t, c.RemoveFriend(ctx, "bob"))

	friendships, err := engine.ListFriends(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, friendships)
}

func TestFriends_UnimplementedEndpoint_FallsBackWithoutNetworkCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(server.Close)

	tokens := token.NewMemoryStore()
	signed, err := auth.GenerateToken("alice", []byte("secret"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, tokens.Set(context.Background(), signed))

	c := NewClient(server.URL+"/api", tokens, server.Client())
	c.MarkUnimplemented("/friends")
	c.SetFriendFallback(friend.NewEngine(friend.NewMemoryStore()))

	friends, err := c.Friends(context.Background())
	require.NoError(t, err)
	assert.Empty(t, friends)
	assert.Zero(t, calls)
}

// サーバーが返した業務エラーはフォールバックせず、そのまま伝播する。
func TestSendFriendRequest_ServerError_DoesNotFallBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "SELF_FRIEND_REQUEST",
			"message": "自分自身に友達申請はできません。",
		})
	}))
	t.Cleanup(server.Close)

	tokens := token.NewMemoryStore()
	engine := friend.NewEngine(friend.NewMemoryStore())
	c := NewClient(server.URL+"/api", tokens, server.Client())
	c.SetFriendFallback(engine)

	_, err := c.SendFriendRequest(context.Background(), "alice")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "SELF_FRIEND_REQUEST", httpErr.Code)

	// エンジンは呼ばれていない
	pending, perr := engine.ListPendingRequests(context.Background(), "alice")
	require.NoError(t, perr)
	assert.Empty(t, pending)
}

func TestFriends_NoFallbackConfigured_PropagatesError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := NewClient(server.URL+"/api", token.NewMemoryStore(), nil)

	_, err := c.Friends(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
