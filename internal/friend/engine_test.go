package friend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tellme/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewMemoryStore())
}

func apiErrCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := err.(*model.APIError)
	require.True(t, ok, "expected *model.APIError, got %T", err)
	return apiErr.Code
}

func TestSendRequest_CreatesPendingRequest(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", req.SenderID)
	assert.Equal(t, "bob", req.ReceiverID)
	assert.Equal(t, StatusPending, req.Status)
	assert.NotEmpty(t, req.ID)

	pending, err := e.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

func TestSendRequest_ToSelf_Rejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SendRequest(context.Background(), "alice", "alice")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeSelfFriendRequest, apiErrCode(t, err))
}

func TestSendRequest_DuplicatePendingPair_Rejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	// 同方向の重複
	_, err = e.SendRequest(ctx, "alice", "bob")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeDuplicateFriendReq, apiErrCode(t, err))

	// 逆方向も同じ無順序ペアとして拒否される
	_, err = e.SendRequest(ctx, "bob", "alice")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeDuplicateFriendReq, apiErrCode(t, err))
}

func TestSendRequest_AlreadyFriends_Rejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	_, err = e.SendRequest(ctx, "alice", "bob")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeAlreadyFriends, apiErrCode(t, err))
}

func TestAcceptRequest_CreatesExactlyOneFriendship(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	friendship, err := e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)
	assert.True(t, friendship.Connects("alice", "bob"))

	aliceFriends, err := e.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)

	bobFriends, err := e.ListFriends(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, aliceFriends[0].ID, bobFriends[0].ID)

	// 承認済みの申請は保留一覧から消える
	pending, err := e.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAcceptRequest_Twice_Fails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeFriendReqNotPending, apiErrCode(t, err))

	// 2回目の承認が友達関係を増やしていないこと
	friends, err := e.ListFriends(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestAcceptRequest_OnlyReceiverCanAccept(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	// 送信者本人は承認できない
	_, err = e.AcceptRequest(ctx, "alice", req.ID)
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeFriendReqNotPending, apiErrCode(t, err))

	// 無関係なユーザーも承認できない
	_, err = e.AcceptRequest(ctx, "carol", req.ID)
	require.Error(t, err)
}

func TestAcceptRequest_UnknownID_NotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AcceptRequest(context.Background(), "bob", "no-such-request")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeFriendReqNotFound, apiErrCode(t, err))
}

func TestRejectRequest_NoFriendshipCreated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, e.RejectRequest(ctx, "bob", req.ID))

	friends, err := e.ListFriends(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, friends)

	// 拒否は終端状態: 再拒否も再承認も失敗する
	err = e.RejectRequest(ctx, "bob", req.ID)
	require.Error(t, err)
	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.Error(t, err)
}

func TestRemoveFriend_DeletesFriendship(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	require.NoError(t, e.RemoveFriend(ctx, "alice", "bob"))

	friends, err := e.ListFriends(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestRemoveFriend_Absent_FailsWithoutMutation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	err = e.RemoveFriend(ctx, "alice", "carol")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeFriendshipNotFound, apiErrCode(t, err))

	// 既存の友達関係が削除されていないこと
	friends, err := e.ListFriends(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestSubscribe_NotifiesOnMutation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := e.Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventRequestSent, events[0].Type)
	assert.Equal(t, req.ID, events[0].RequestID)
	assert.Equal(t, EventUpdated, events[1].Type)

	// 解除後は通知されない
	unsubscribe()
	require.NoError(t, e.RemoveFriend(ctx, "alice", "bob"))
	assert.Len(t, events, 2)
}

// 購読者が通知を受けて一覧を再取得するのが想定される使い方なので、
// コールバック内からの取得操作がブロックしないことを検証する。
func TestSubscribe_CallbackCanReadEngine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var pendingSeen, friendsSeen int
	unsubscribe := e.Subscribe(func(ev Event) {
		pending, err := e.ListPendingRequests(ctx, "bob")
		require.NoError(t, err)
		pendingSeen = len(pending)

		friends, err := e.ListFriends(ctx, "bob")
		require.NoError(t, err)
		friendsSeen = len(friends)
	})
	defer unsubscribe()

	req, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, pendingSeen)
	assert.Equal(t, 0, friendsSeen)

	_, err = e.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pendingSeen)
	assert.Equal(t, 1, friendsSeen)

	require.NoError(t, e.RemoveFriend(ctx, "alice", "bob"))
	assert.Equal(t, 0, friendsSeen)

	req2, err := e.SendRequest(ctx, "carol", "bob")
	require.NoError(t, err)
	require.NoError(t, e.RejectRequest(ctx, "bob", req2.ID))
	assert.Equal(t, 0, pendingSeen)
}

func TestListFriends_FiltersByUser(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	r1, err := e.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", r1.ID)
	require.NoError(t, err)

	r2, err := e.SendRequest(ctx, "carol", "bob")
	require.NoError(t, err)
	_, err = e.AcceptRequest(ctx, "bob", r2.ID)
	require.NoError(t, err)

	bobFriends, err := e.ListFriends(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobFriends, 2)

	aliceFriends, err := e.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, "bob", aliceFriends[0].Other("alice"))
}
