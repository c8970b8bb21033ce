package friend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore はクライアントローカルのStore実装。
// かつてのlocalStorage保存の置き換えで、状態全体を1行のJSONとして保持する。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore は指定パスのSQLiteデータベースを開き、
// スキーマを初期化したSQLiteStoreを返す。
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS friend_state (
  id         INTEGER PRIMARY KEY CHECK (id = 1),
  state      TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL
);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init friend_state schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore は既存のDB接続からSQLiteStoreを生成する。
// スキーマは呼び出し側で用意されていること。
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close は基盤のDB接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load は保存済みの友達グラフを読み込む。未保存の場合は空のStateを返す。
func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
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
func (s *SQLiteStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode friend state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO friend_state (id, state, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save friend state: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
