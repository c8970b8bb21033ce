package friend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore はサーバー側のStore実装。
// friend_stateテーブルの1行に状態全体をJSONBとして保持する。
// クライアントローカル実装と同じ契約（全読み・全置換）を守ることで、
// Engineのセマンティクスを両層で共有する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load は保存済みの友達グラフを読み込む。未保存の場合は空のStateを返す。
func (s *PostgresStore) Load(ctx context.Context) (*State, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM friend_state WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load friend state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode friend state: %w", err)
	}
	return state, nil
}

// Save は友達グラフ全体を1単位でUPSERTする。
func (s *PostgresStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode friend state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO friend_state (id, state, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save friend state: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
