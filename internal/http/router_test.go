package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/devhub/internal/auth"
	"github.com/geocoder89/devhub/internal/cache"
	"github.com/geocoder89/devhub/internal/domain/post"
	"github.com/geocoder89/devhub/internal/github"
	apphttp "github.com/geocoder89/devhub/internal/http"
	"github.com/geocoder89/devhub/internal/jobs"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/geocoder89/devhub/internal/repo/memory"
	"github.com/geocoder89/devhub/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type stubGitHub struct{}

func (stubGitHub) Repos(context.Context, string) ([]github.Repo, error) {
	return nil, github.ErrNotFound
}

type testApp struct {
	router *gin.Engine
	posts  *memory.PostsRepo
	jobs   *memory.JobsRepo
	log    *slog.Logger
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager("test-secret-key", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s := memory.NewStore()
	posts := memory.NewPostsRepo(s)
	jobsRepo := memory.NewJobsRepo(s)

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := apphttp.NewRouter(logger, apphttp.Deps{
		Users:    memory.NewUsersRepo(s),
		Profiles: memory.NewProfilesRepo(s),
		Accounts: memory.NewAccountsRepo(s),
		Posts:    posts,
		GitHub:   stubGitHub{},
		Cache:    cache.NewMemoryStore(time.Minute),
		Tokens:   tokens,
		Prom:     observability.NewProm(reg),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, apphttp.Options{Env: "test", AuthRateLimit: 100})

	return testApp{router: router, posts: posts, jobs: jobsRepo, log: logger}
}

func (a testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
}

func register(t *testing.T, app testApp, name, email, password string) string {
	t.Helper()

	w := app.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Fatalf("expected a token")
	}
	return resp.Token
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestRouter_ProfileAndPostFlow(t *testing.T) {
	app := newTestApp(t)

	token := register(t, app, "A", "a@x.com", "secret1")

	w := app.do(t, http.MethodGet, "/api/auth", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	var me map[string]any
	decode(t, w, &me)
	if me["email"] != "a@x.com" {
		t.Fatalf("unexpected me %v", me)
	}
	if _, leaked := me["password"]; leaked {
		t.Fatalf("password must not be returned")
	}

	w = app.do(t, http.MethodPost, "/api/profile", token, map[string]string{"status": "Developer", "skills": "go,rust"})
	if w.Code != http.StatusCreated {
		t.Fatalf("profile: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Profile struct {
			Skills []string `json:"skills"`
		} `json:"profile"`
	}
	decode(t, w, &created)
	if len(created.Profile.Skills) != 2 || created.Profile.Skills[0] != "go" || created.Profile.Skills[1] != "rust" {
		t.Fatalf("expected [go rust], got %v", created.Profile.Skills)
	}

	w = app.do(t, http.MethodPost, "/api/posts", token, map[string]string{"text": "hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var p post.Post
	decode(t, w, &p)

	w = app.do(t, http.MethodPut, "/api/posts/like/"+p.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("like: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var likes []post.Like
	decode(t, w, &likes)
	if len(likes) != 1 {
		t.Fatalf("expected 1 like, got %d", len(likes))
	}

	w = app.do(t, http.MethodPut, "/api/posts/like/"+p.ID, token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second like: expected 400, got %d", w.Code)
	}

	// the listing names the profile owner
	w = app.do(t, http.MethodGet, "/api/profile/all", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list profiles: expected 200, got %d", w.Code)
	}
	var all []struct {
		Owner struct {
			Name string `json:"name"`
		} `json:"owner"`
	}
	decode(t, w, &all)
	if len(all) != 1 || all[0].Owner.Name != "A" {
		t.Fatalf("unexpected profile list %+v", all)
	}
}

func TestRouter_AuthFailures(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "A", "a@x.com", "secret1")

	w := app.do(t, http.MethodGet, "/api/profile/me", "", nil)
	var e apiError
	decode(t, w, &e)
	if w.Code != http.StatusUnauthorized || e.Error.Message != "Unauthorized: no token" {
		t.Fatalf("no token: got %d %q", w.Code, e.Error.Message)
	}

	w = app.do(t, http.MethodGet, "/api/profile/me", "garbage", nil)
	decode(t, w, &e)
	if w.Code != http.StatusUnauthorized || e.Error.Message != "Unauthorized: token invalid" {
		t.Fatalf("bad token: got %d %q", w.Code, e.Error.Message)
	}

	w = app.do(t, http.MethodPost, "/api/users", "", map[string]string{"name": "B", "email": "A@X.com", "password": "secret1"})
	decode(t, w, &e)
	if w.Code != http.StatusBadRequest || e.Error.Code != "email_taken" {
		t.Fatalf("duplicate email: got %d %q", w.Code, e.Error.Code)
	}

	w = app.do(t, http.MethodPost, "/api/auth", "", map[string]string{"email": "a@x.com", "password": "wrong-pass"})
	decode(t, w, &e)
	if w.Code != http.StatusBadRequest || e.Error.Code != "invalid_credentials" {
		t.Fatalf("wrong password: got %d %q", w.Code, e.Error.Code)
	}

	w = app.do(t, http.MethodPost, "/api/auth", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
}

func TestRouter_DeleteAccountPurgesActivity(t *testing.T) {
	app := newTestApp(t)

	alice := register(t, app, "Alice", "alice@x.com", "secret1")
	bob := register(t, app, "Bob", "bob@x.com", "secret1")

	w := app.do(t, http.MethodPost, "/api/posts", alice, map[string]string{"text": "from alice"})
	var alicePost post.Post
	decode(t, w, &alicePost)

	w = app.do(t, http.MethodPost, "/api/posts", bob, map[string]string{"text": "from bob"})
	var bobPost post.Post
	decode(t, w, &bobPost)

	app.do(t, http.MethodPut, "/api/posts/like/"+bobPost.ID, alice, nil)
	app.do(t, http.MethodPost, "/api/posts/comment/"+bobPost.ID, alice, map[string]string{"text": "hi bob"})

	w = app.do(t, http.MethodDelete, "/api/profile", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete account: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	// posts survive until the purge job runs
	if _, err := app.posts.GetByID(context.Background(), alicePost.ID); err != nil {
		t.Fatalf("expected alice's post before purge, got %v", err)
	}

	wk := worker.New(worker.Config{WorkerID: "test"}, app.jobs, app.log, nil)
	wk.Handle(jobs.TypePurgeUserActivity, jobs.PurgeUserActivity(app.posts, app.log))

	claimed, err := wk.ProcessOne(context.Background())
	if err != nil || !claimed {
		t.Fatalf("ProcessOne: claimed=%v err=%v", claimed, err)
	}

	if _, err := app.posts.GetByID(context.Background(), alicePost.ID); err == nil {
		t.Fatalf("expected alice's post to be purged")
	}

	remaining, err := app.posts.GetByID(context.Background(), bobPost.ID)
	if err != nil {
		t.Fatalf("bob's post: %v", err)
	}
	if len(remaining.Likes) != 0 || len(remaining.Comments) != 0 {
		t.Fatalf("expected alice's like and comment to be stripped, got %+v", remaining)
	}

	// alice's token no longer resolves to an account
	w = app.do(t, http.MethodGet, "/api/auth", alice, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("me after delete: expected 404, got %d", w.Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	if w := app.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", w.Code)
	}

	w := app.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("devhub_http_requests_total")) {
		t.Fatalf("metrics: expected devhub_http_requests_total, got %d", w.Code)
	}

	if w := app.do(t, http.MethodGet, "/api/profile/github/octocat", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("github: expected 404, got %d", w.Code)
	}
}
