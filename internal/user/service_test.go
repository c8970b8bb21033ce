package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tellme/internal/model"
	"github.com/hitoshi/tellme/internal/security"
	"github.com/hitoshi/tellme/internal/upload"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// --- モック ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
	updateFn   func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) ListRecentExcluding(ctx context.Context, excludeIDs []string, limit int) ([]*model.User, error) {
	return nil, nil
}

type mockPostRepo struct {
	statsByUserFn func(ctx context.Context, userID string) (*model.UserStats, error)
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error { return nil }
func (m *mockPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	return nil, nil
}
func (m *mockPostRepo) ListAll(ctx context.Context) ([]*model.Post, error) { return nil, nil }
func (m *mockPostRepo) ListByUser(ctx context.Context, userID string) ([]*model.Post, error) {
	return nil, nil
}
func (m *mockPostRepo) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	return false, nil
}
func (m *mockPostRepo) AddComment(ctx context.Context, comment *model.Comment) error { return nil }
func (m *mockPostRepo) StatsByUser(ctx context.Context, userID string) (*model.UserStats, error) {
	return m.statsByUserFn(ctx, userID)
}

// mockSSRFGuard は検証結果とHTTPクライアントを差し替え可能にする。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	return m.validateErr
}

func existingUser() *model.User {
	return &model.User{ID: "user-1", Name: "Alice", Email: "alice@example.com", Bio: "old bio"}
}

func newTestService(t *testing.T, users *mockUserRepo, posts *mockPostRepo, guard security.SSRFGuardService) *Service {
	t.Helper()
	store, err := upload.NewStore(t.TempDir(), 5*1024*1024)
	if err != nil {
		t.Fatalf("failed to create upload store: %v", err)
	}
	if posts == nil {
		posts = &mockPostRepo{}
	}
	if guard == nil {
		guard = &mockSSRFGuard{}
	}
	return NewService(users, posts, security.NewContentSanitizer(), guard, store, nil)
}

// --- UpdateProfile のテスト ---

func TestUpdateProfile_SanitizesAndPersists(t *testing.T) {
	var updated *model.User
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}

	svc := newTestService(t, users, nil, nil)

	result, err := svc.UpdateProfile(context.Background(), "user-1", " Alice B ", "<b>hello</b> world")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	if updated == nil {
		t.Fatal("expected user to be persisted")
	}
	if result.Name != "Alice B" {
		t.Errorf("name = %q, want %q", result.Name, "Alice B")
	}
	if result.Bio != "hello world" {
		t.Errorf("bio = %q, want %q", result.Bio, "hello world")
	}
}

func TestUpdateProfile_EmptyName_Rejected(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			t.Error("user should not be persisted")
			return nil
		},
	}

	svc := newTestService(t, users, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "user-1", "  <i></i>  ", "bio")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != "NAME_REQUIRED" {
		t.Errorf("err = %v, want NAME_REQUIRED", err)
	}
}

func TestUpdateProfile_UnknownUser_ReturnsError(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := newTestService(t, users, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "missing", "Alice", "")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != "USER_NOT_FOUND" {
		t.Errorf("err = %v, want USER_NOT_FOUND", err)
	}
}

// --- Stats のテスト ---

func TestStats_ReturnsAggregates(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
	}
	posts := &mockPostRepo{
		statsByUserFn: func(ctx context.Context, userID string) (*model.UserStats, error) {
			return &model.UserStats{Posts: 3, Likes: 7, Comments: 2}, nil
		},
	}

	svc := newTestService(t, users, posts, nil)

	stats, err := svc.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Posts != 3 || stats.Likes != 7 || stats.Comments != 2 {
		t.Errorf("stats = %+v, want {3 7 2}", stats)
	}
}

// --- アバターのテスト ---

func TestUploadAvatarBase64_StoresDataURLInline(t *testing.T) {
	var updated *model.User
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}

	svc := newTestService(t, users, nil, nil)

	dataURL := "data:image/png;base64," + tinyPNG
	result, err := svc.UploadAvatarBase64(context.Background(), "user-1", dataURL)
	if err != nil {
		t.Fatalf("UploadAvatarBase64 failed: %v", err)
	}

	if updated == nil {
		t.Fatal("expected user to be persisted")
	}
	if result.ProfilePicture != dataURL {
		t.Errorf("profile picture = %q, want inline data URL", result.ProfilePicture)
	}
}

func TestUploadAvatarBase64_InvalidFormat_Rejected(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			t.Error("user should not be persisted")
			return nil
		},
	}

	svc := newTestService(t, users, nil, nil)

	_, err := svc.UploadAvatarBase64(context.Background(), "user-1", "http://example.com/a.png")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != "INVALID_IMAGE" {
		t.Errorf("err = %v, want INVALID_IMAGE", err)
	}
}

func TestUploadAvatarFromURL_SavesFetchedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake png bytes"))
	}))
	defer server.Close()

	var updated *model.User
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}

	svc := newTestService(t, users, nil, &mockSSRFGuard{})

	result, err := svc.UploadAvatarFromURL(context.Background(), "user-1", server.URL+"/avatar.png")
	if err != nil {
		t.Fatalf("UploadAvatarFromURL failed: %v", err)
	}

	if updated == nil {
		t.Fatal("expected user to be persisted")
	}
	if !strings.HasPrefix(result.ProfilePicture, upload.URLPrefix+"/") {
		t.Errorf("profile picture = %q, want %s/ prefix", result.ProfilePicture, upload.URLPrefix)
	}
	if !strings.HasSuffix(result.ProfilePicture, ".png") {
		t.Errorf("profile picture = %q, want .png extension", result.ProfilePicture)
	}
}

func TestUploadAvatarFromURL_BlockedURL_ReturnsError(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			t.Error("user should not be persisted")
			return nil
		},
	}

	guard := &mockSSRFGuard{validateErr: context.DeadlineExceeded}
	svc := newTestService(t, users, nil, guard)

	_, err := svc.UploadAvatarFromURL(context.Background(), "user-1", "http://169.254.169.254/meta")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != "SSRF_BLOCKED" {
		t.Errorf("err = %v, want SSRF_BLOCKED", err)
	}
}

func TestUploadAvatarFromURL_Non200_ReturnsFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existingUser(), nil
		},
	}

	svc := newTestService(t, users, nil, &mockSSRFGuard{})

	_, err := svc.UploadAvatarFromURL(context.Background(), "user-1", server.URL+"/missing.png")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != "FETCH_FAILED" {
		t.Errorf("err = %v, want FETCH_FAILED", err)
	}
}
