// Package post は投稿・いいね・コメントのドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/model"
	"github.com/hitoshi/tellme/internal/repository"
	"github.com/hitoshi/tellme/internal/security"
	"github.com/hitoshi/tellme/internal/upload"
)

// Service は投稿のサービス層。
// 保存前のサニタイズと、レスポンス用のユーザー参照展開を担う。
type Service struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	sanitizer security.ContentSanitizerService
	uploads   *upload.Store
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnilを許容する（メトリクス収集なしで動作する）。
func NewService(
	posts repository.PostRepository,
	users repository.UserRepository,
	sanitizer security.ContentSanitizerService,
	uploads *upload.Store,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		posts:     posts,
		users:     users,
		sanitizer: sanitizer,
		uploads:   uploads,
		collector: collector,
	}
}

// Create は新規投稿を作成する。
// 本文はサニタイズ後に空であれば拒否する。imageDataURLが空でない場合は
// data:image形式として検証・保存し、相対パスを投稿に記録する。
func (s *Service) Create(ctx context.Context, userID, content, imageDataURL string) (*model.PostWithAuthors, error) {
	content = s.sanitizer.SanitizeText(content)
	if content == "" {
		return nil, model.NewContentRequiredError()
	}

	imagePath := ""
	if imageDataURL != "" {
		path, err := s.uploads.SaveDataURL("post", imageDataURL)
		if err != nil {
			return nil, err
		}
		imagePath = path
		if s.collector != nil {
			s.collector.RecordImageUploaded("post")
		}
	}

	post := &model.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Image:     imagePath,
		Likes:     []string{},
		Comments:  []model.Comment{},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordPostCreated()
	}
	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", userID),
		slog.Bool("has_image", imagePath != ""),
	)

	return s.expandOne(ctx, post)
}

// ListAll は全投稿を新しい順に、作者参照つきで返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.PostWithAuthors, error) {
	posts, err := s.posts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return s.expand(ctx, posts)
}

// ListByUser は指定ユーザーの投稿を新しい順に、作者参照つきで返す。
// ユーザーが存在しない場合はエラーを返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.PostWithAuthors, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	posts, err := s.posts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by user: %w", err)
	}
	return s.expand(ctx, posts)
}

// Get は指定IDの投稿を作者参照つきで返す。
func (s *Service) Get(ctx context.Context, postID string) (*model.PostWithAuthors, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return s.expandOne(ctx, post)
}

// Like は投稿にいいねを追加し、更新後の投稿を返す。
// 同一ユーザーの2回目のいいねは拒否する。
func (s *Service) Like(ctx context.Context, postID, userID string) (*model.PostWithAuthors, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	added, err := s.posts.AddLike(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to add like: %w", err)
	}
	if !added {
		return nil, model.NewDuplicateLikeError()
	}

	if s.collector != nil {
		s.collector.RecordLikeAdded()
	}

	return s.Get(ctx, postID)
}

// Comment は投稿にコメントを追加し、更新後の投稿を返す。
// コメント本文はサニタイズ後に空であれば拒否する。
func (s *Service) Comment(ctx context.Context, postID, userID, content string) (*model.PostWithAuthors, error) {
	content = s.sanitizer.SanitizeText(content)
	if content == "" {
		return nil, model.NewContentRequiredError()
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	comment := &model.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.posts.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordCommentAdded()
	}

	return s.Get(ctx, postID)
}

// expandOne は単一投稿にユーザー参照を展開する。
func (s *Service) expandOne(ctx context.Context, post *model.Post) (*model.PostWithAuthors, error) {
	expanded, err := s.expand(ctx, []*model.Post{post})
	if err != nil {
		return nil, err
	}
	return expanded[0], nil
}

// expand は投稿群に作者・コメント作者のユーザー参照をまとめて展開する。
// ユーザー参照はIDごとに1回だけ取得する。
func (s *Service) expand(ctx context.Context, posts []*model.Post) ([]*model.PostWithAuthors, error) {
	idSet := make(map[string]struct{})
	for _, p := range posts {
		idSet[p.UserID] = struct{}{}
		for _, c := range p.Comments {
			idSet[c.UserID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load post authors: %w", err)
	}

	refFor := func(userID string) model.UserRef {
		if u, ok := users[userID]; ok {
			return model.UserRef{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
		}
		// 退会済みユーザーの投稿・コメントはIDのみの参照で返す
		return model.UserRef{ID: userID}
	}

	result := make([]*model.PostWithAuthors, 0, len(posts))
	for _, p := range posts {
		pw := &model.PostWithAuthors{
			Post:           *p,
			Author:         refFor(p.UserID),
			CommentAuthors: make(map[string]model.UserRef, len(p.Comments)),
		}
		for _, c := range p.Comments {
			pw.CommentAuthors[c.UserID] = refFor(c.UserID)
		}
		result = append(result, pw)
	}

	return result, nil
}
