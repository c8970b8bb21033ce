// Package token はクライアント側の認証トークン保存を提供する。
package token

import (
	"context"
	"errors"
	"sync"
)

// ErrNoToken は保存されたトークンが存在しないことを示す。
var ErrNoToken = errors.New("no token stored")

// Store は認証トークンの永続化インターフェース。
type Store interface {
	// Get は保存済みのトークンを返す。未保存の場合はErrNoTokenを返す。
	Get(ctx context.Context) (string, error)

	// Set はトークンを保存する。既存のトークンは上書きする。
	Set(ctx context.Context, token string) error

	// Remove は保存済みのトークンを削除する。未保存でもエラーにしない。
	Remove(ctx context.Context) error
}

// MemoryStore はテスト・一時セッション用のインメモリ実装。
type MemoryStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemoryStore はMemoryStoreの新しいインスタンスを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

var _ Store = (*MemoryStore)(nil)
