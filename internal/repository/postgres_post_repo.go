package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tellme/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
// いいねはpost_likesテーブル（複合主キーで集合セマンティクスを保証）、
// コメントはpost_commentsテーブル（created_at昇順＝挿入順）に保持する。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, content, image, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.UserID, post.Content, post.Image, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿をいいね・コメント込みで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, image, created_at FROM posts WHERE id = $1`, id,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.Image, &post.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	if err := r.attachLikesAndComments(ctx, []*model.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// ListAll は全投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListAll(ctx context.Context) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT id, user_id, content, image, created_at FROM posts ORDER BY created_at DESC`)
}

// ListByUser は指定ユーザーの投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListByUser(ctx context.Context, userID string) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT id, user_id, content, image, created_at FROM posts WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *PostgresPostRepo) list(ctx context.Context, query string, args ...any) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post := &model.Post{}
		if err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.Image, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	if err := r.attachLikesAndComments(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachLikesAndComments は投稿群にいいね集合とコメント列を付加する。
// いいねは追加順、コメントは作成日時昇順（＝時系列）で格納する。
func (r *PostgresPostRepo) attachLikesAndComments(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[string]*model.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		p.Likes = []string{}
		p.Comments = []model.Comment{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	likeRows, err := r.db.QueryContext(ctx,
		`SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1) ORDER BY created_at ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query post likes: %w", err)
	}
	defer likeRows.Close()

	for likeRows.Next() {
		var postID, userID string
		if err := likeRows.Scan(&postID, &userID); err != nil {
			return fmt.Errorf("failed to scan like row: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Likes = append(p.Likes, userID)
		}
	}
	if err := likeRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate like rows: %w", err)
	}

	commentRows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, user_id, content, created_at
		 FROM post_comments WHERE post_id = ANY($1) ORDER BY created_at ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query post comments: %w", err)
	}
	defer commentRows.Close()

	for commentRows.Next() {
		c := model.Comment{}
		if err := commentRows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment row: %w", err)
		}
		if p, ok := byID[c.PostID]; ok {
			p.Comments = append(p.Comments, c)
		}
	}
	if err := commentRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate comment rows: %w", err)
	}

	return nil
}

// AddLike はいいねを追加する。既存の場合はfalseを返す。
// 複合主キーとON CONFLICT DO NOTHINGにより、並行リクエストでも
// 同一ユーザーのいいねが2重に入ることはない。
func (r *PostgresPostRepo) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// AddComment はコメントを追加する。
func (r *PostgresPostRepo) AddComment(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_comments (id, post_id, user_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		comment.ID, comment.PostID, comment.UserID, comment.Content, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// StatsByUser は指定ユーザーの投稿数・獲得いいね数・獲得コメント数を返す。
func (r *PostgresPostRepo) StatsByUser(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(DISTINCT p.id),
		   COUNT(DISTINCT (l.post_id, l.user_id)),
		   COUNT(DISTINCT c.id)
		 FROM posts p
		 LEFT JOIN post_likes l ON l.post_id = p.id
		 LEFT JOIN post_comments c ON c.post_id = p.id
		 WHERE p.user_id = $1`,
		userID,
	).Scan(&stats.Posts, &stats.Likes, &stats.Comments)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user stats: %w", err)
	}
	return stats, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
