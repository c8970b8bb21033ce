package friend

import (
	"context"
	"sync"
)

// State は友達グラフの全体を表す。
// Storeは常にこの構造を1単位として読み書きする。
type State struct {
	Friendships []Friendship `json:"friendships"`
	Requests    []Request    `json:"requests"`
}

// Store は友達グラフの永続化インターフェース。
// Loadは状態が未保存の場合でも空のStateを返す（nilを返さない）。
// Saveは渡された状態で保存済み内容を全置換する。
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryStore はインメモリのStore実装。テストおよび揮発モードで使用する。
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load は保存済み状態のコピーを返す。
func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := State{
		Friendships: append([]Friendship(nil), s.state.Friendships...),
		Requests:    append([]Request(nil), s.state.Requests...),
	}
	return &cp, nil
}

// Save は状態を全置換する。
func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{
		Friendships: append([]Friendship(nil), state.Friendships...),
		Requests:    append([]Request(nil), state.Requests...),
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
