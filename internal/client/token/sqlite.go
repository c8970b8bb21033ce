package token

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// tokenKey はauth_tokenテーブル内の認証トークンのキー。
const tokenKey = "auth_token"

// SQLiteStore はSQLiteにトークンを保存するStore実装。
// CLIの複数回起動をまたいでログイン状態を保持する。
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
CREATE TABLE IF NOT EXISTS auth_token (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init auth_token schema: %w", err)
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

func (s *SQLiteStore) Get(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM auth_token WHERE key = ?`, tokenKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_token (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, tokenKey, token)
	if err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_token WHERE key = ?`, tokenKey)
	if err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
