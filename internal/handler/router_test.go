package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tellme/internal/auth"
	"github.com/hitoshi/tellme/internal/friend"
	"github.com/hitoshi/tellme/internal/middleware"
	"github.com/hitoshi/tellme/internal/model"
	"github.com/hitoshi/tellme/internal/post"
	"github.com/hitoshi/tellme/internal/repository"
	"github.com/hitoshi/tellme/internal/security"
	"github.com/hitoshi/tellme/internal/upload"
	"github.com/hitoshi/tellme/internal/user"
)

// --- インメモリリポジトリ（結合テスト用） ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			result[id] = &cp
		}
	}
	return result, nil
}

func (r *memUserRepo) Update(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) ListRecentExcluding(ctx context.Context, excludeIDs []string, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var result []*model.User
	for _, u := range r.users {
		if !excluded[u.ID] {
			cp := *u
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type memPostRepo struct {
	mu    sync.Mutex
	posts []*model.Post
}

func (r *memPostRepo) Create(ctx context.Context, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := clonePost(p)
	r.posts = append(r.posts, cp)
	return nil
}

func (r *memPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == id {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (r *memPostRepo) ListAll(ctx context.Context) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		result = append(result, clonePost(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memPostRepo) ListByUser(ctx context.Context, userID string) ([]*model.Post, error) {
	all, _ := r.ListAll(ctx)
	var result []*model.Post
	for _, p := range all {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *memPostRepo) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID != postID {
			continue
		}
		for _, id := range p.Likes {
			if id == userID {
				return false, nil
			}
		}
		p.Likes = append(p.Likes, userID)
		return true, nil
	}
	return false, nil
}

func (r *memPostRepo) AddComment(ctx context.Context, comment *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == comment.PostID {
			p.Comments = append(p.Comments, *comment)
			return nil
		}
	}
	return nil
}

func (r *memPostRepo) StatsByUser(ctx context.Context, userID string) (*model.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.UserStats{}
	for _, p := range r.posts {
		if p.UserID != userID {
			continue
		}
		stats.Posts++
		stats.Likes += len(p.Likes)
		stats.Comments += len(p.Comments)
	}
	return stats, nil
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.Likes = append([]string{}, p.Likes...)
	cp.Comments = append([]model.Comment{}, p.Comments...)
	return &cp
}

// --- ルーター組み立て ---

// jwtVerifier はauthパッケージのトークン検証をミドルウェアに適合させる。
type jwtVerifier struct {
	secret []byte
}

func (v *jwtVerifier) Verify(token string) (string, error) {
	return auth.VerifyToken(token, v.secret)
}

// userExists はUserRepositoryをミドルウェアのUserFinderに適合させる。
type userExists struct {
	users repository.UserRepository
}

func (f *userExists) Exists(ctx context.Context, userID string) (bool, error) {
	u, err := f.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

const testJWTSecret = "integration-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	userRepo := newMemUserRepo()
	postRepo := &memPostRepo{}
	sanitizer := security.NewContentSanitizer()

	uploads, err := upload.NewStore(t.TempDir(), 5*1024*1024)
	if err != nil {
		t.Fatalf("failed to create upload store: %v", err)
	}

	authService := auth.NewService(userRepo, sanitizer, nil, auth.ServiceConfig{
		JWTSecret: testJWTSecret,
		TokenTTL:  time.Hour,
	})
	postService := post.NewService(postRepo, userRepo, sanitizer, uploads, nil)
	userService := user.NewService(userRepo, postRepo, sanitizer, security.NewSSRFGuard(), uploads, nil)
	engine := friend.NewEngine(friend.NewMemoryStore())

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:     &jwtVerifier{secret: []byte(testJWTSecret)},
		UserFinder:        &userExists{users: userRepo},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,

		AuthService:  authService,
		PostService:  postService,
		UserService:  userService,
		FriendEngine: engine,
		UserDir:      userRepo,

		UploadDir: uploads.Dir(),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router http.Handler, name, email string) (token string, userID string) {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + email + `","password":"secret123"}`
	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", body)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	var got authResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	return got.Token, got.User.ID
}

// --- E2E テスト ---

// 登録 → ログイン → 投稿 → 一覧 の一連のフローを検証する。
func TestRouter_RegisterLoginPostList(t *testing.T) {
	router := newTestRouter(t)

	// 登録
	_, userID := registerUser(t, router, "Alice", "alice@example.com")

	// ログイン
	w := doJSON(t, router, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"secret123"}`)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	var login authResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&login); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}

	// 投稿作成
	w = doJSON(t, router, http.MethodPost, "/api/posts", login.Token, `{"content":"hello"}`)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("create post status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}

	// 一覧にちょうど1件、いいねは空集合
	w = doJSON(t, router, http.MethodGet, "/api/posts", login.Token, "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("list posts status = %d", w.Result().StatusCode)
	}
	var posts []postResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&posts); err != nil {
		t.Fatalf("failed to decode posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].Content != "hello" {
		t.Errorf("content = %q, want %q", posts[0].Content, "hello")
	}
	if posts[0].User.ID != userID {
		t.Errorf("author = %q, want %q", posts[0].User.ID, userID)
	}
	if posts[0].Likes == nil || len(posts[0].Likes) != 0 {
		t.Errorf("likes = %v, want empty array", posts[0].Likes)
	}
}

// 認証なしの保護ルートアクセスは401を返す。
func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/posts"},
		{http.MethodPost, "/api/posts"},
		{http.MethodGet, "/api/friends"},
		{http.MethodGet, "/api/users/me/stats"},
	}

	for _, p := range paths {
		w := doJSON(t, router, p.method, p.path, "", "")
		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d",
				p.method, p.path, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

// 同一投稿への2回目のいいねは400 DUPLICATE_LIKEを返す。
func TestRouter_DuplicateLikeRejected(t *testing.T) {
	router := newTestRouter(t)

	aliceToken, _ := registerUser(t, router, "Alice", "alice@example.com")
	bobToken, _ := registerUser(t, router, "Bob", "bob@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/posts", aliceToken, `{"content":"like me"}`)
	var created postResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode post: %v", err)
	}

	w = doJSON(t, router, http.MethodPost, "/api/posts/"+created.ID+"/like", bobToken, "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first like status = %d", w.Result().StatusCode)
	}

	w = doJSON(t, router, http.MethodPost, "/api/posts/"+created.ID+"/like", bobToken, "")
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("second like status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w); got["code"] != "DUPLICATE_LIKE" {
		t.Errorf("code = %q, want DUPLICATE_LIKE", got["code"])
	}
}

// 友達申請 → 承認 → 一覧 のフローを検証する。
func TestRouter_FriendRequestFlow(t *testing.T) {
	router := newTestRouter(t)

	aliceToken, aliceID := registerUser(t, router, "Alice", "alice@example.com")
	bobToken, bobID := registerUser(t, router, "Bob", "bob@example.com")

	// Alice が Bob に申請
	w := doJSON(t, router, http.MethodPost, "/api/friends/request/"+bobID, aliceToken, "")
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("send request status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	var request friendRequestResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&request); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}

	// Bob宛の保留中申請に現れる
	w = doJSON(t, router, http.MethodGet, "/api/friends/requests", bobToken, "")
	var requests []friendRequestResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&requests); err != nil {
		t.Fatalf("failed to decode requests: %v", err)
	}
	if len(requests) != 1 || requests[0].Sender.ID != aliceID {
		t.Fatalf("requests = %+v, want 1 from Alice", requests)
	}

	// Bob が承認
	w = doJSON(t, router, http.MethodPost, "/api/friends/accept/"+request.ID, bobToken, "")
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("accept status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}

	// 双方の友達一覧に現れる
	for _, tc := range []struct {
		token    string
		expectID string
	}{
		{aliceToken, bobID},
		{bobToken, aliceID},
	} {
		w = doJSON(t, router, http.MethodGet, "/api/friends", tc.token, "")
		var friends []friendResponse
		if err := json.NewDecoder(w.Result().Body).Decode(&friends); err != nil {
			t.Fatalf("failed to decode friends: %v", err)
		}
		if len(friends) != 1 || friends[0].User.ID != tc.expectID {
			t.Errorf("friends = %+v, want 1 entry (%s)", friends, tc.expectID)
		}
	}
}

// /health は認証なしで200を返す。
func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", "")
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}
