// Package friend は友達関係のドメインロジックを提供する。
//
// Engine は友達申請のステートマシン（pending → accepted | rejected）と
// 友達関係（無順序ペア・対称関係）の唯一の実装であり、永続化は
// Store インターフェースに委譲する。サーバーはPostgres、クライアントは
// ローカルSQLiteを差し込むことで、同一のセマンティクスを両層で共有する。
package friend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tellme/internal/model"
)

// Status は友達申請の状態を表す。
type Status string

const (
	// StatusPending は申請が保留中であることを示す。
	StatusPending Status = "pending"
	// StatusAccepted は申請が承認されたことを示す（終端状態）。
	StatusAccepted Status = "accepted"
	// StatusRejected は申請が拒否されたことを示す（終端状態）。
	StatusRejected Status = "rejected"
)

// Request は友達申請を表す。
type Request struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Friendship は成立した友達関係を表す。
// UserAとUserBは無順序ペアであり、方向を持たない。
type Friendship struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// Connects は友達関係が指定の2ユーザーを結ぶかを返す。順序は問わない。
func (f Friendship) Connects(userID, otherID string) bool {
	return (f.UserA == userID && f.UserB == otherID) ||
		(f.UserA == otherID && f.UserB == userID)
}

// Other は友達関係のもう一方のユーザーidを返す。
// userIDが関係に含まれない場合は空文字列を返す。
func (f Friendship) Other(userID string) string {
	switch userID {
	case f.UserA:
		return f.UserB
	case f.UserB:
		return f.UserA
	default:
		return ""
	}
}

// EventType はエンジンが発行する変更通知の種別を表す。
type EventType string

const (
	// EventRequestSent は友達申請の送信を示す。
	EventRequestSent EventType = "request_sent"
	// EventUpdated は承認・拒否・削除による状態変化を示す。
	EventUpdated EventType = "updated"
)

// Event はエンジンの変更通知を表す。
// かつてのstorageイベント＋カスタムDOMイベントの置き換えであり、
// 購読者は通知を受けたら一覧を再取得する想定。
type Event struct {
	Type      EventType
	RequestID string
	UserIDs   []string // 影響を受けたユーザーid
}

// Engine は友達申請と友達関係のすべての変更操作を提供する。
// 変更は {friendships, requests} コレクション全体を1単位としてStoreに保存し、
// 保存成功後に購読者へ通知する。エンジン内のミューテックスで
// load-modify-save の直列化を保証する。
type Engine struct {
	store Store

	// muはload-modify-saveの直列化用。購読者マップは別ロックで守り、
	// 通知コールバックの実行中はどちらのロックも保持しない。
	mu sync.Mutex

	subsMu sync.Mutex
	subs   map[int]func(Event)
	next   int
}

// NewEngine は指定されたStoreを使うEngineを生成する。
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		subs:  make(map[int]func(Event)),
	}
}

// Subscribe は変更通知の購読を登録し、解除関数を返す。
// 通知は変更操作を実行したゴルーチン上で、エンジンのロックを解放した後に
// 同期的に呼ばれる。コールバックからListFriendsなどの取得操作を
// 呼び出してよい。
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	id := e.next
	e.next++
	e.subs[id] = fn

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		delete(e.subs, id)
	}
}

// SendRequest はsenderIDからreceiverIDへの友達申請を作成する。
// 自分自身への申請、保留中の申請が既にあるペア、既に友達であるペアは拒否する。
func (e *Engine) SendRequest(ctx context.Context, senderID, receiverID string) (*Request, error) {
	if senderID == receiverID {
		return nil, model.NewSelfFriendRequestError()
	}

	req, err := e.appendRequest(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	e.notify(Event{Type: EventRequestSent, RequestID: req.ID, UserIDs: []string{senderID, receiverID}})
	return req, nil
}

// appendRequest は申請の検証と保存をエンジンのロック下で行う。
func (e *Engine) appendRequest(ctx context.Context, senderID, receiverID string) (*Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	for _, f := range state.Friendships {
		if f.Connects(senderID, receiverID) {
			return nil, model.NewAlreadyFriendsError()
		}
	}
	// 保留中の申請は無順序ペアごとに最大1件
	for _, r := range state.Requests {
		if r.Status != StatusPending {
			continue
		}
		if (r.SenderID == senderID && r.ReceiverID == receiverID) ||
			(r.SenderID == receiverID && r.ReceiverID == senderID) {
			return nil, model.NewDuplicateFriendRequestError()
		}
	}

	req := Request{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	state.Requests = append(state.Requests, req)

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save friend state: %w", err)
	}

	return &req, nil
}

// AcceptRequest は保留中の申請を承認し、友達関係を作成する。
// 申請の受信者本人のみが実行でき、保留中でない申請は承認できない。
func (e *Engine) AcceptRequest(ctx context.Context, userID, requestID string) (*Friendship, error) {
	friendship, err := e.acceptRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	e.notify(Event{Type: EventUpdated, RequestID: requestID, UserIDs: []string{friendship.UserA, friendship.UserB}})
	return friendship, nil
}

func (e *Engine) acceptRequest(ctx context.Context, userID, requestID string) (*Friendship, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	idx := findRequest(state, requestID)
	if idx < 0 {
		return nil, model.NewFriendRequestNotFoundError(requestID)
	}
	req := &state.Requests[idx]
	if req.ReceiverID != userID || req.Status != StatusPending {
		return nil, model.NewFriendRequestNotPendingError()
	}

	req.Status = StatusAccepted
	friendship := Friendship{
		ID:        uuid.NewString(),
		UserA:     req.SenderID,
		UserB:     req.ReceiverID,
		CreatedAt: time.Now().UTC(),
	}
	state.Friendships = append(state.Friendships, friendship)

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save friend state: %w", err)
	}

	return &friendship, nil
}

// RejectRequest は保留中の申請を拒否する。
// 申請の受信者本人のみが実行でき、保留中でない申請は拒否できない。
func (e *Engine) RejectRequest(ctx context.Context, userID, requestID string) error {
	req, err := e.rejectRequest(ctx, userID, requestID)
	if err != nil {
		return err
	}

	e.notify(Event{Type: EventUpdated, RequestID: requestID, UserIDs: []string{req.SenderID, req.ReceiverID}})
	return nil
}

func (e *Engine) rejectRequest(ctx context.Context, userID, requestID string) (*Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	idx := findRequest(state, requestID)
	if idx < 0 {
		return nil, model.NewFriendRequestNotFoundError(requestID)
	}
	req := &state.Requests[idx]
	if req.ReceiverID != userID || req.Status != StatusPending {
		return nil, model.NewFriendRequestNotPendingError()
	}

	req.Status = StatusRejected

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save friend state: %w", err)
	}

	return req, nil
}

// RemoveFriend はuserIDとfriendIDの友達関係を削除する。
// 関係が存在しない場合はエラーを返し、保存済み状態を変更しない。
func (e *Engine) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if err := e.removeFriendship(ctx, userID, friendID); err != nil {
		return err
	}

	e.notify(Event{Type: EventUpdated, UserIDs: []string{userID, friendID}})
	return nil
}

func (e *Engine) removeFriendship(ctx context.Context, userID, friendID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load friend state: %w", err)
	}

	idx := -1
	for i, f := range state.Friendships {
		if f.Connects(userID, friendID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.NewFriendshipNotFoundError()
	}

	state.Friendships = append(state.Friendships[:idx], state.Friendships[idx+1:]...)

	if err := e.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save friend state: %w", err)
	}

	return nil
}

// ListFriends はuserIDの友達関係一覧を返す。
func (e *Engine) ListFriends(ctx context.Context, userID string) ([]Friendship, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	friends := []Friendship{}
	for _, f := range state.Friendships {
		if f.UserA == userID || f.UserB == userID {
			friends = append(friends, f)
		}
	}
	return friends, nil
}

// ListPendingRequests はuserID宛の保留中の申請一覧を返す。
func (e *Engine) ListPendingRequests(ctx context.Context, userID string) ([]Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	requests := []Request{}
	for _, r := range state.Requests {
		if r.ReceiverID == userID && r.Status == StatusPending {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

// notify は登録済みの購読者全員へイベントを配信する。
// コールバックはロックを一切保持せずに呼び出すため、
// 購読者はエンジンの取得操作を安全に呼び出せる。
func (e *Engine) notify(ev Event) {
	e.subsMu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func findRequest(state *State, requestID string) int {
	for i, r := range state.Requests {
		if r.ID == requestID {
			return i
		}
	}
	return -1
}
