// Package user はプロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/model"
	"github.com/hitoshi/tellme/internal/repository"
	"github.com/hitoshi/tellme/internal/security"
	"github.com/hitoshi/tellme/internal/upload"
)

// fetchTimeout はアバターURL取得のタイムアウト。
const fetchTimeout = 10 * time.Second

// Service はプロフィール管理のサービス層。
// プロフィール更新・統計取得・アバター設定の3系統を提供する。
type Service struct {
	users     repository.UserRepository
	posts     repository.PostRepository
	sanitizer security.ContentSanitizerService
	ssrfGuard security.SSRFGuardService
	uploads   *upload.Store
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnilを許容する。
func NewService(
	users repository.UserRepository,
	posts repository.PostRepository,
	sanitizer security.ContentSanitizerService,
	ssrfGuard security.SSRFGuardService,
	uploads *upload.Store,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		users:     users,
		posts:     posts,
		sanitizer: sanitizer,
		ssrfGuard: ssrfGuard,
		uploads:   uploads,
		collector: collector,
	}
}

// UpdateProfile は名前と自己紹介を更新する。
// 名前はサニタイズ後に空であれば拒否する。自己紹介は空を許容する。
func (s *Service) UpdateProfile(ctx context.Context, userID, name, bio string) (*model.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	name = s.sanitizer.SanitizeText(name)
	if name == "" {
		return nil, model.NewNameRequiredError()
	}

	user.Name = name
	user.Bio = s.sanitizer.SanitizeText(bio)
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

// Stats は投稿数・獲得いいね数・獲得コメント数を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}

	stats, err := s.posts.StatsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return stats, nil
}

// UploadAvatar はmultipartでアップロードされた画像をアバターとして保存する。
func (s *Service) UploadAvatar(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*model.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	path, err := s.uploads.SaveMultipart("avatar", file, header)
	if err != nil {
		return nil, err
	}

	return s.setProfilePicture(ctx, user, path)
}

// UploadAvatarBase64 はdata:image形式の画像をアバターとして設定する。
// 形式とサイズ上限を検証した上で、data URLをそのままプロフィールに保持する。
func (s *Service) UploadAvatarBase64(ctx context.Context, userID, imageDataURL string) (*model.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 検証のみ行い、保存形式はdata URLのまま
	if _, _, err := s.uploads.DecodeDataURL(imageDataURL); err != nil {
		return nil, err
	}

	return s.setProfilePicture(ctx, user, imageDataURL)
}

// UploadAvatarFromURL は外部URLから画像を取得してアバターとして保存する。
// SSRF防止のためURLを事前検証し、取得にも安全なHTTPクライアントを使用する。
func (s *Service) UploadAvatarFromURL(ctx context.Context, userID, rawURL string) (*model.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		slog.Warn("avatar URL blocked",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError("URLの形式が正しくありません")
	}

	client := s.ssrfGuard.NewSafeClient(fetchTimeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError("画像の取得に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d が返されました", resp.StatusCode))
	}

	// 上限+1バイトで打ち切り、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.uploads.MaxBytes()+1))
	if err != nil {
		return nil, model.NewFetchFailedError("レスポンスの読み込みに失敗しました")
	}
	if int64(len(data)) > s.uploads.MaxBytes() {
		return nil, model.NewImageTooLargeError(s.uploads.MaxBytes())
	}

	path, err := s.uploads.SaveBytes("avatar", resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	return s.setProfilePicture(ctx, user, path)
}

// setProfilePicture はプロフィール画像の参照を更新して永続化する。
func (s *Service) setProfilePicture(ctx context.Context, user *model.User, picture string) (*model.User, error) {
	user.ProfilePicture = picture
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile picture: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordImageUploaded("avatar")
	}
	slog.Info("avatar updated", slog.String("user_id", user.ID))

	return user, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
