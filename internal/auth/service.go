package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/model"
	"github.com/hitoshi/tellme/internal/repository"
	"github.com/hitoshi/tellme/internal/security"
)

// minPasswordLength は受け入れるパスワードの最小長。
const minPasswordLength = 6

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Service は登録・ログイン・本人取得のビジネスロジックを提供する。
// 登録・ログイン成功時にベアラートークンを発行する。
type Service struct {
	users     repository.UserRepository
	sanitizer security.ContentSanitizerService
	collector metrics.MetricsCollector
	secret    []byte
	tokenTTL  time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnilを許容する。
func NewService(users repository.UserRepository, sanitizer security.ContentSanitizerService, collector metrics.MetricsCollector, cfg ServiceConfig) *Service {
	return &Service{
		users:     users,
		sanitizer: sanitizer,
		collector: collector,
		secret:    []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
	}
}

// Register は新規ユーザーを作成し、トークンを発行する。
// メールアドレスが登録済みの場合はエラーを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (string, *model.User, error) {
	name = s.sanitizer.SanitizeText(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return "", nil, model.NewNameRequiredError()
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil, &model.APIError{
			Code:     "INVALID_EMAIL",
			Message:  "メールアドレスの形式が正しくありません。",
			Category: "validation",
			Action:   "正しいメールアドレスを入力してください。",
		}
	}
	if len(password) < minPasswordLength {
		return "", nil, &model.APIError{
			Code:     "PASSWORD_TOO_SHORT",
			Message:  fmt.Sprintf("パスワードは%d文字以上にしてください。", minPasswordLength),
			Category: "validation",
			Action:   "より長いパスワードを設定してください。",
		}
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return "", nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return "", nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := GenerateToken(user.ID, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordUserRegistered()
	}

	return token, user, nil
}

// Login は資格情報を検証してトークンを発行する。
// ユーザー不在とパスワード不一致は同一のエラーとして返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recordLoginFailure()
		return "", nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordLoginFailure()
		return "", nil, model.NewInvalidCredentialsError()
	}

	token, err := GenerateToken(user.ID, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordLoginSuccess()
	}

	return token, user, nil
}

func (s *Service) recordLoginFailure() {
	if s.collector != nil {
		s.collector.RecordLoginFailure()
	}
}

// CurrentUser は認証済みユーザーIDから本人情報を取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
