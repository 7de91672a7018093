package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bloghub/internal/account"
	"github.com/hitoshi/bloghub/internal/auth"
	"github.com/hitoshi/bloghub/internal/comment"
	"github.com/hitoshi/bloghub/internal/metrics"
	"github.com/hitoshi/bloghub/internal/middleware"
	"github.com/hitoshi/bloghub/internal/post"
	"github.com/hitoshi/bloghub/internal/security"
)

type allowAllURLs struct{}

func (allowAllURLs) ValidateURL(string) error { return nil }

type stubHealthChecker struct{ err error }

func (s stubHealthChecker) PingContext(context.Context) error { return s.err }

// testEnv は実サービスとインメモリリポジトリで組み立てたルーター。
type testEnv struct {
	t        *testing.T
	router   http.Handler
	accounts *memoryAccountRepo
	posts    *memoryPostRepo
	comments *memoryCommentRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := &memoryAccountRepo{}
	posts := &memoryPostRepo{}
	comments := &memoryCommentRepo{}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	hasher := auth.NewBcryptHasher()
	codec := auth.NewTokenCodec("router-test-secret", 24*time.Hour)
	sanitizer := security.NewContentSanitizer()

	authService := auth.NewService(accounts, hasher, codec, nil, allowAllURLs{}, collector)

	router := NewRouter(&RouterDeps{
		TokenVerifier:     codec,
		Metrics:           collector,
		Logger:            nil,
		CORSAllowedOrigin: "http://localhost:5173",
		HealthChecker:     stubHealthChecker{},
		MetricsHandler:    metrics.Handler(reg),
		AuthService:       authService,
		AuthConfig:        testAuthConfig,
		UserService:       account.NewService(accounts, hasher, allowAllURLs{}),
		PostService:       post.NewService(posts, sanitizer, allowAllURLs{}),
		FeedBaseURL:       "https://blog.example.com",
		CommentService:    comment.NewService(comments, posts, sanitizer),
	})

	return &testEnv{t: t, router: router, accounts: accounts, posts: posts, comments: comments}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		r = jsonBody(e.t, body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signUpAndIn はアカウントを作成してサインインし、アカウントIDとトークンを返す。
func (e *testEnv) signUpAndIn(username string) (string, string) {
	e.t.Helper()
	email := username + "@example.com"
	if w := e.do(http.MethodPost, "/api/auth/sign-up", map[string]string{
		"username": username, "email": email, "password": "secret123",
	}, ""); w.Code != http.StatusOK {
		e.t.Fatalf("sign-up %s status = %d, body = %s", username, w.Code, w.Body.String())
	}
	return e.signIn(email)
}

func (e *testEnv) signIn(email string) (string, string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": email, "password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		e.t.Fatalf("sign-in %s status = %d, body = %s", email, w.Code, w.Body.String())
	}
	cookie := findCookie(w.Result(), middleware.SessionCookieName)
	if cookie == nil {
		e.t.Fatalf("sign-in %s did not set a session cookie", email)
	}
	var body struct {
		User struct {
			ID string `json:"_id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		e.t.Fatalf("failed to decode sign-in response: %v", err)
	}
	return body.User.ID, cookie.Value
}

// promote は管理者権限を付与し、新しい権限を持つトークンで再サインインする。
func (e *testEnv) promote(username string) (string, string) {
	e.t.Helper()
	email := username + "@example.com"
	ok, err := e.accounts.SetAdminByEmail(context.Background(), email, true)
	if err != nil || !ok {
		e.t.Fatalf("SetAdminByEmail(%s) = (%v, %v)", email, ok, err)
	}
	return e.signIn(email)
}

func TestRouter_SignUpSignInAdminScenario(t *testing.T) {
	env := newTestEnv(t)

	// 1. sign-up はCookieを発行しない
	w := env.do(http.MethodPost, "/api/auth/sign-up", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sign-up status = %d, body = %s", w.Code, w.Body.String())
	}
	if c := findCookie(w.Result(), middleware.SessionCookieName); c != nil {
		t.Error("sign-up must not set a session cookie")
	}

	// 2. sign-in はCookieを発行し、レスポンスにパスワードを含めない
	w = env.do(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status = %d, body = %s", w.Code, w.Body.String())
	}
	if c := findCookie(w.Result(), middleware.SessionCookieName); c == nil || c.Value == "" {
		t.Fatal("sign-in did not set a session cookie")
	}
	raw := w.Body.String()
	if strings.Contains(raw, "password") || strings.Contains(raw, "$2a$") {
		t.Errorf("sign-in response leaks password material: %s", raw)
	}
	_, token := env.signIn("alice@example.com")

	// 3. 一般ユーザーはユーザー一覧を取得できない
	w = env.do(http.MethodGet, "/api/user/get/all/users", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-admin list status = %d, want 400", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "You are not allowed to see all users" {
		t.Errorf("message = %v", body["message"])
	}

	// 4. 昇格後は集計値付きで取得できる
	env.signUpAndIn("bob")
	_, adminToken := env.promote("alice")

	w = env.do(http.MethodGet, "/api/user/get/all/users", nil, adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["totalUsers"] != float64(2) {
		t.Errorf("totalUsers = %v, want 2", body["totalUsers"])
	}
	if body["lastMonthUsers"] != float64(2) {
		t.Errorf("lastMonthUsers = %v, want 2", body["lastMonthUsers"])
	}
	if users, ok := body["users"].([]any); !ok || len(users) != 2 {
		t.Errorf("users = %v", body["users"])
	}
}

func TestRouter_SignIn_UnknownEmailAndWrongPasswordAreIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("carol")

	wrongPassword := env.do(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": "carol@example.com", "password": "not-the-password",
	}, "")
	unknownEmail := env.do(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": "nobody@example.com", "password": "not-the-password",
	}, "")

	if wrongPassword.Code != unknownEmail.Code {
		t.Errorf("status differs: %d vs %d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("body differs:\n%s\n%s", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestRouter_GuardedRoutesRequireCookie(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/post/get-posts"},
		{http.MethodPost, "/api/post/create-post"},
		{http.MethodGet, "/api/user/get/user/acc-1"},
		{http.MethodGet, "/api/comment/like/comment/c1"},
		{http.MethodGet, "/api/comment/get/all/comments"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(tt.method, tt.path, nil, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if body := decodeBody(t, w); body["message"] != "Unauthorised" {
				t.Errorf("message = %v, want Unauthorised", body["message"])
			}

			w = env.do(tt.method, tt.path, nil, "forged.token.value")
			if w.Code != http.StatusBadRequest {
				t.Errorf("forged token status = %d, want 400", w.Code)
			}
		})
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/comment/get/post/comments/unknown", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("post comments status = %d, want 200", w.Code)
	}

	w = env.do(http.MethodGet, "/api/post/feed", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("feed status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<rss") {
		t.Errorf("feed body = %s", w.Body.String())
	}

	w = env.do(http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}

	w = env.do(http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bloghub_http_requests_total") {
		t.Error("metrics output missing bloghub_http_requests_total")
	}
}

func TestRouter_OAuthRoutesHiddenWhenDisabled(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/auth/google/login", "/api/auth/google/callback"} {
		if w := env.do(http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}
}

func TestRouter_OAuthRoutesMountedWhenEnabled(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled:  true,
		getLoginURLFn: func(state string) string { return "https://accounts.google.com/?state=" + state },
		federatedSignInFn: func(context.Context, auth.FederatedProfile) (*auth.Session, error) {
			t.Error("body profile must not reach FederatedSignIn when the server-side flow is configured")
			return nil, nil
		},
	}
	router := NewRouter(&RouterDeps{
		TokenVerifier: auth.NewTokenCodec("secret", time.Hour),
		Metrics:       metrics.NewCollector(prometheus.NewRegistry()),
		AuthService:   svc,
		AuthConfig:    testAuthConfig,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))
	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}

	body := jsonBody(t, map[string]string{"email": "admin@example.com", "username": "mallory"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/google", body))
	if w.Code != http.StatusNotFound {
		t.Errorf("POST /api/auth/google status = %d, want 404", w.Code)
	}
	if findCookie(w.Result(), middleware.SessionCookieName) != nil {
		t.Error("no session cookie may be issued for an unverified profile")
	}
}

func TestRouter_HealthReportsDatabaseFailure(t *testing.T) {
	router := NewRouter(&RouterDeps{
		TokenVerifier: auth.NewTokenCodec("secret", time.Hour),
		Metrics:       metrics.NewCollector(prometheus.NewRegistry()),
		HealthChecker: stubHealthChecker{err: errors.New("connection refused")},
		AuthService:   &mockAuthService{},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// createPost は管理者トークンで投稿を作成し、投稿IDを返す。
func (e *testEnv) createPost(token, title string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/post/create-post", map[string]string{
		"title": title, "content": "<p>" + title + " body</p>",
	}, token)
	if w.Code != http.StatusOK {
		e.t.Fatalf("create post status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Post struct {
			ID string `json:"_id"`
		} `json:"post"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		e.t.Fatalf("failed to decode create post response: %v", err)
	}
	return body.Post.ID
}

func (e *testEnv) createComment(token, userID, postID, content string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/comment/create", map[string]string{
		"content": content, "postId": postID, "userId": userID,
	}, token)
	if w.Code != http.StatusOK {
		e.t.Fatalf("create comment status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Comment struct {
			ID string `json:"_id"`
		} `json:"comment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		e.t.Fatalf("failed to decode create comment response: %v", err)
	}
	return body.Comment.ID
}

func TestRouter_PostOwnershipGrid(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("owner")
	ownerID, ownerToken := env.promote("owner")
	env.signUpAndIn("admin2")
	_, adminToken := env.promote("admin2")
	_, strangerToken := env.signUpAndIn("stranger")

	callers := []struct {
		name    string
		token   string
		allowed bool
	}{
		{"owner", ownerToken, true},
		{"other admin", adminToken, true},
		{"stranger", strangerToken, false},
	}

	for i, c := range callers {
		t.Run(c.name, func(t *testing.T) {
			postID := env.createPost(ownerToken, fmt.Sprintf("Grid post %d", i))

			w := env.do(http.MethodPut, "/api/post/update-posts/"+postID+"/"+ownerID,
				map[string]string{"title": "Edited by " + c.name}, c.token)
			if c.allowed && w.Code != http.StatusOK {
				t.Errorf("update status = %d, want 200, body = %s", w.Code, w.Body.String())
			}
			if !c.allowed {
				if w.Code != http.StatusBadRequest {
					t.Errorf("update status = %d, want 400", w.Code)
				}
				if body := decodeBody(t, w); body["message"] != "You are not allowed to update this post" {
					t.Errorf("update message = %v", body["message"])
				}
			}

			w = env.do(http.MethodDelete, "/api/post/delete-posts/"+postID+"/"+ownerID, nil, c.token)
			if c.allowed && w.Code != http.StatusOK {
				t.Errorf("delete status = %d, want 200", w.Code)
			}
			if !c.allowed && w.Code != http.StatusBadRequest {
				t.Errorf("delete status = %d, want 400", w.Code)
			}

			found, _ := env.posts.FindByID(context.Background(), postID)
			if c.allowed && found != nil {
				t.Error("post should have been deleted")
			}
			if !c.allowed && (found == nil || found.Title != fmt.Sprintf("Grid post %d", i)) {
				t.Errorf("post should be untouched, got %+v", found)
			}
		})
	}
}

func TestRouter_CommentOwnershipGrid(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("author")
	_, authorToken := env.promote("author")
	postID := env.createPost(authorToken, "Comment grid")

	ownerID, ownerToken := env.signUpAndIn("commenter")
	env.signUpAndIn("moderator")
	_, adminToken := env.promote("moderator")
	_, strangerToken := env.signUpAndIn("stranger")

	callers := []struct {
		name    string
		token   string
		allowed bool
	}{
		{"owner", ownerToken, true},
		{"admin", adminToken, true},
		{"stranger", strangerToken, false},
	}

	for _, c := range callers {
		t.Run(c.name, func(t *testing.T) {
			commentID := env.createComment(ownerToken, ownerID, postID, "original")

			w := env.do(http.MethodPut, "/api/comment/edit/comment/"+commentID,
				map[string]string{"content": "edited"}, c.token)
			if c.allowed && w.Code != http.StatusOK {
				t.Errorf("edit status = %d, want 200, body = %s", w.Code, w.Body.String())
			}
			if !c.allowed && w.Code != http.StatusBadRequest {
				t.Errorf("edit status = %d, want 400", w.Code)
			}

			w = env.do(http.MethodDelete, "/api/comment/delete/comment/"+commentID, nil, c.token)
			if c.allowed && w.Code != http.StatusOK {
				t.Errorf("delete status = %d, want 200", w.Code)
			}
			if !c.allowed {
				if w.Code != http.StatusBadRequest {
					t.Errorf("delete status = %d, want 400", w.Code)
				}
				if body := decodeBody(t, w); body["message"] != "You are not allowed to edit this comment" {
					t.Errorf("delete message = %v", body["message"])
				}
			}

			found, _ := env.comments.FindByID(context.Background(), commentID)
			if c.allowed && found != nil {
				t.Error("comment should have been deleted")
			}
			if !c.allowed && (found == nil || found.Content != "original") {
				t.Errorf("comment should be untouched, got %+v", found)
			}
		})
	}
}

func TestRouter_CommentForAnotherUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("author")
	_, authorToken := env.promote("author")
	postID := env.createPost(authorToken, "Impersonation")

	victimID, _ := env.signUpAndIn("victim")
	_, attackerToken := env.signUpAndIn("attacker")

	w := env.do(http.MethodPost, "/api/comment/create", map[string]string{
		"content": "spoofed", "postId": postID, "userId": victimID,
	}, attackerToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(env.comments.comments) != 0 {
		t.Errorf("comments stored = %d, want 0", len(env.comments.comments))
	}
}

func TestRouter_DoubleLikeRestoresState(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("author")
	_, authorToken := env.promote("author")
	postID := env.createPost(authorToken, "Likes")

	ownerID, ownerToken := env.signUpAndIn("commenter")
	commentID := env.createComment(ownerToken, ownerID, postID, "like me")
	likerID, likerToken := env.signUpAndIn("liker")

	likeState := func() ([]any, float64) {
		t.Helper()
		w := env.do(http.MethodGet, "/api/comment/like/comment/"+commentID, nil, likerToken)
		if w.Code != http.StatusOK {
			t.Fatalf("like status = %d, body = %s", w.Code, w.Body.String())
		}
		c, _ := decodeBody(t, w)["comment"].(map[string]any)
		likes, _ := c["likes"].([]any)
		n, _ := c["numberOfLikes"].(float64)
		return likes, n
	}

	likes, n := likeState()
	if n != 1 || len(likes) != 1 || likes[0] != likerID {
		t.Errorf("after first like: likes = %v, numberOfLikes = %v", likes, n)
	}

	likes, n = likeState()
	if n != 0 || len(likes) != 0 {
		t.Errorf("after second like: likes = %v, numberOfLikes = %v", likes, n)
	}
}

func TestRouter_GetPostsAndCommentsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.signUpAndIn("author")
	_, authorToken := env.promote("author")
	env.createPost(authorToken, "First Post")
	postID := env.createPost(authorToken, "Second Post")

	ownerID, ownerToken := env.signUpAndIn("reader")
	env.createComment(ownerToken, ownerID, postID, "one")
	env.createComment(ownerToken, ownerID, postID, "two")

	w := env.do(http.MethodGet, "/api/post/get-posts?slug=second-post", nil, ownerToken)
	if w.Code != http.StatusOK {
		t.Fatalf("get-posts status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if posts, ok := body["posts"].([]any); !ok || len(posts) != 1 {
		t.Errorf("posts = %v, want 1 entry", body["posts"])
	}
	if body["totalPosts"] != float64(2) {
		t.Errorf("totalPosts = %v, want 2", body["totalPosts"])
	}

	w = env.do(http.MethodGet, "/api/comment/get/post/comments/"+postID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("post comments status = %d", w.Code)
	}
	comments, _ := decodeBody(t, w)["comments"].([]any)
	if len(comments) != 2 {
		t.Fatalf("comments = %v, want 2", comments)
	}
	if first, _ := comments[0].(map[string]any); first["content"] != "two" {
		t.Errorf("newest comment first: got %v", first["content"])
	}

	w = env.do(http.MethodGet, "/api/comment/get/all/comments", nil, ownerToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-admin all comments status = %d, want 400", w.Code)
	}
	w = env.do(http.MethodGet, "/api/comment/get/all/comments", nil, authorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("admin all comments status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["totalComments"] != float64(2) {
		t.Errorf("totalComments = %v, want 2", body["totalComments"])
	}
}
