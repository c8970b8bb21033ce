// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tellme/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByIDs は複数IDのユーザーをまとめて取得し、id -> User のマップで返す。
	// レスポンス展開用。存在しないIDはマップに含めない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)

	// Update はユーザーのname, bio, profile_picture, updated_atを更新する。
	Update(ctx context.Context, user *model.User) error

	// ListRecentExcluding は指定ID群を除く最近登録のユーザーを返す。
	// 友達候補の提案用。
	ListRecentExcluding(ctx context.Context, excludeIDs []string, limit int) ([]*model.User, error)
}

// PostRepository は投稿データの永続化インターフェース。
// 返される投稿にはいいね集合と埋め込みコメント列（時系列順）が常に含まれる。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListAll は全投稿を作成日時の降順で返す。
	ListAll(ctx context.Context) ([]*model.Post, error)

	// ListByUser は指定ユーザーの投稿を作成日時の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Post, error)

	// AddLike はいいねを追加する。
	// 既に同一ユーザーのいいねが存在する場合はfalseを返し、何も変更しない。
	AddLike(ctx context.Context, postID, userID string) (bool, error)

	// AddComment はコメントを投稿の末尾に追加する。
	AddComment(ctx context.Context, comment *model.Comment) error

	// StatsByUser は指定ユーザーの投稿数・獲得いいね数・獲得コメント数を返す。
	StatsByUser(ctx context.Context, userID string) (*model.UserStats, error)
}
