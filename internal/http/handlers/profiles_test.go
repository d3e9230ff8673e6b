package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/devhub/internal/cache"
	"github.com/geocoder89/devhub/internal/domain/profile"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/github"
	"github.com/geocoder89/devhub/internal/http/handlers"
	"github.com/geocoder89/devhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

type fakeProfilesRepo struct {
	getFn    func(ctx context.Context, userID string) (profile.Profile, error)
	listFn   func(ctx context.Context) ([]profile.Profile, error)
	upsertFn func(ctx context.Context, userID string, f profile.Fields) (profile.Profile, bool, error)
	mutateFn func(ctx context.Context, userID string, fn func(*profile.Profile) error) (profile.Profile, error)
}

func (f *fakeProfilesRepo) GetByUser(ctx context.Context, userID string) (profile.Profile, error) {
	if f.getFn != nil {
		return f.getFn(ctx, userID)
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (f *fakeProfilesRepo) List(ctx context.Context) ([]profile.Profile, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []profile.Profile{}, nil
}

func (f *fakeProfilesRepo) Upsert(ctx context.Context, userID string, fields profile.Fields) (profile.Profile, bool, error) {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, userID, fields)
	}
	return profile.Profile{}, false, nil
}

func (f *fakeProfilesRepo) Mutate(ctx context.Context, userID string, fn func(*profile.Profile) error) (profile.Profile, error) {
	if f.mutateFn != nil {
		return f.mutateFn(ctx, userID, fn)
	}
	return profile.Profile{}, profile.ErrNotFound
}

type fakeRepos struct {
	fn func(ctx context.Context, username string) ([]github.Repo, error)
}

func (f fakeRepos) Repos(ctx context.Context, username string) ([]github.Repo, error) {
	return f.fn(ctx, username)
}

func profileRouter(h *handlers.ProfileHandler, userID string) *gin.Engine {
	r := gin.New()

	r.GET("/api/profile/all", h.List)
	r.GET("/api/profile/user/:id", h.GetByUser)
	r.GET("/api/profile/github/:username", h.GitHubRepos)

	authed := r.Group("/api/profile", asUser(userID))
	authed.GET("/me", h.Me)
	authed.POST("", h.Upsert)
	authed.DELETE("", h.DeleteAccount)
	authed.PUT("/experience", h.AddExperience)
	authed.DELETE("/experience/:id", h.RemoveExperience)
	authed.PUT("/education", h.AddEducation)
	authed.DELETE("/education/:id", h.RemoveEducation)

	return r
}

type memoryDeps struct {
	store    *memory.Store
	users    *memory.UsersRepo
	profiles *memory.ProfilesRepo
	posts    *memory.PostsRepo
	accounts *memory.AccountsRepo
	jobs     *memory.JobsRepo
}

func newMemoryDeps() memoryDeps {
	s := memory.NewStore()
	return memoryDeps{
		store:    s,
		users:    memory.NewUsersRepo(s),
		profiles: memory.NewProfilesRepo(s),
		posts:    memory.NewPostsRepo(s),
		accounts: memory.NewAccountsRepo(s),
		jobs:     memory.NewJobsRepo(s),
	}
}

func seedUser(t *testing.T, users *memory.UsersRepo, name, email string) user.User {
	t.Helper()

	u, err := users.Create(context.Background(), user.New(name, email, "hash", "https://gravatar.test/"+name))
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestProfileUpsert_CreatesThenUpdates(t *testing.T) {
	deps := newMemoryDeps()
	u := seedUser(t, deps.users, "Ada", "ada@example.com")

	h := handlers.NewProfileHandler(deps.profiles, deps.accounts, nil, nil, nil)
	r := profileRouter(h, u.ID)

	w := doJSON(t, r, http.MethodPost, "/api/profile", `{"status":"Developer","skills":"go, rust"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Msg     string          `json:"msg"`
		Profile profile.Profile `json:"profile"`
	}
	decodeInto(t, w, &created)

	if created.Msg != "Profile created" {
		t.Fatalf("unexpected msg %q", created.Msg)
	}
	if len(created.Profile.Skills) != 2 || created.Profile.Skills[0] != "go" || created.Profile.Skills[1] != "rust" {
		t.Fatalf("expected skills [go rust], got %v", created.Profile.Skills)
	}

	w = doJSON(t, r, http.MethodPost, "/api/profile", `{"status":"Lead","skills":["go"],"company":"Acme"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var updated struct {
		Msg     string          `json:"msg"`
		Profile profile.Profile `json:"profile"`
	}
	decodeInto(t, w, &updated)

	if updated.Msg != "Profile updated" || updated.Profile.Status != "Lead" || updated.Profile.Company != "Acme" {
		t.Fatalf("unexpected update response %+v", updated)
	}
	if updated.Profile.ID != created.Profile.ID {
		t.Fatalf("expected the same profile to be updated")
	}
}

func TestProfileUpsert_RejectsEmptySkills(t *testing.T) {
	deps := newMemoryDeps()
	h := handlers.NewProfileHandler(deps.profiles, deps.accounts, nil, nil, nil)
	r := profileRouter(h, newUUID())

	w := doJSON(t, r, http.MethodPost, "/api/profile", `{"status":"Developer","skills":" , "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	if env := decodeErr(t, w); env.Error.Code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", env.Error.Code)
	}
}

func TestProfileMe_NoProfile(t *testing.T) {
	h := handlers.NewProfileHandler(&fakeProfilesRepo{}, nil, nil, nil, nil)
	r := profileRouter(h, newUUID())

	w := doJSON(t, r, http.MethodGet, "/api/profile/me", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	env := decodeErr(t, w)
	if env.Error.Code != "profile_not_found" || env.Error.Message != "There is no profile for this user" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestProfileGetByUser_InvalidID(t *testing.T) {
	h := handlers.NewProfileHandler(&fakeProfilesRepo{}, nil, nil, nil, nil)
	r := profileRouter(h, newUUID())

	w := doJSON(t, r, http.MethodGet, "/api/profile/user/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if env := decodeErr(t, w); env.Error.Code != "invalid_id" {
		t.Fatalf("expected invalid_id, got %q", env.Error.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/profile/user/"+newUUID(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}
}

func TestProfileList_ServedFromCacheUntilInvalidated(t *testing.T) {
	calls := 0
	userID := newUUID()

	repo := &fakeProfilesRepo{
		listFn: func(ctx context.Context) ([]profile.Profile, error) {
			calls++
			return []profile.Profile{{ID: "p1", UserID: userID, Status: "Developer", Skills: []string{"go"}}}, nil
		},
		upsertFn: func(ctx context.Context, id string, f profile.Fields) (profile.Profile, bool, error) {
			return profile.Profile{ID: "p1", UserID: id, Status: f.Status, Skills: f.Skills}, false, nil
		},
	}

	h := handlers.NewProfileHandler(repo, nil, nil, cache.NewMemoryStore(time.Minute), nil)
	r := profileRouter(h, userID)

	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodGet, "/api/profile/all", ""); w.Code != http.StatusOK {
			t.Fatalf("list: expected 200, got %d", w.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one repo call while cached, got %d", calls)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/profile", `{"status":"Lead","skills":"go"}`); w.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, r, http.MethodGet, "/api/profile/all", ""); w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	if calls != 2 {
		t.Fatalf("expected upsert to invalidate the list, got %d repo calls", calls)
	}
}

func TestProfileList_ETagNotModified(t *testing.T) {
	h := handlers.NewProfileHandler(&fakeProfilesRepo{}, nil, nil, nil, nil)
	r := profileRouter(h, newUUID())

	w := doJSON(t, r, http.MethodGet, "/api/profile/all", "")
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	req := newRequest(http.MethodGet, "/api/profile/all")
	req.Header.Set("If-None-Match", etag)
	w2 := serve(r, req)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w2.Code)
	}
}

func TestProfileEntries_AddAndRemove(t *testing.T) {
	deps := newMemoryDeps()
	u := seedUser(t, deps.users, "Ada", "ada@example.com")

	h := handlers.NewProfileHandler(deps.profiles, deps.accounts, nil, nil, nil)
	r := profileRouter(h, u.ID)

	// no profile yet
	w := doJSON(t, r, http.MethodPut, "/api/profile/experience", `{"title":"Engineer","company":"Acme","from":"2020-01-01"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a profile, got %d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, r, http.MethodPost, "/api/profile", `{"status":"Developer","skills":"go"}`); w.Code != http.StatusCreated {
		t.Fatalf("upsert: expected 201, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/api/profile/experience", `{"title":"Engineer","company":"Acme","from":"2020-01-01"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add experience: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var p profile.Profile
	decodeInto(t, w, &p)
	if len(p.Experiences) != 1 || p.Experiences[0].Description != profile.DefaultDescription {
		t.Fatalf("unexpected experience %+v", p.Experiences)
	}

	w = doJSON(t, r, http.MethodPut, "/api/profile/education", `{"school":"MIT","degree":"BSc","fieldofstudy":"CS","from":"2015-09-01","to":"2019-06-01"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add education: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	decodeInto(t, w, &p)
	if len(p.Education) != 1 {
		t.Fatalf("expected one education entry, got %+v", p.Education)
	}

	// removing an id that is not there is informational
	w = doJSON(t, r, http.MethodDelete, "/api/profile/experience/"+newUUID(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove missing: expected 200, got %d", w.Code)
	}
	var missing struct {
		Msg     string          `json:"msg"`
		Profile profile.Profile `json:"profile"`
	}
	decodeInto(t, w, &missing)
	if missing.Msg != "Experience not found" || len(missing.Profile.Experiences) != 1 {
		t.Fatalf("unexpected response %+v", missing)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/profile/experience/"+p.Experiences[0].ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", w.Code)
	}
	decodeInto(t, w, &p)
	if len(p.Experiences) != 0 || len(p.Education) != 1 {
		t.Fatalf("expected only the experience to be removed, got %+v", p)
	}
}

func TestProfileAddEducation_RejectsInvertedDates(t *testing.T) {
	deps := newMemoryDeps()
	h := handlers.NewProfileHandler(deps.profiles, deps.accounts, nil, nil, nil)
	r := profileRouter(h, newUUID())

	w := doJSON(t, r, http.MethodPut, "/api/profile/education", `{"school":"MIT","degree":"BSc","fieldofstudy":"CS","from":"2019-06-01","to":"2015-09-01"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestProfileDeleteAccount_EnqueuesPurge(t *testing.T) {
	deps := newMemoryDeps()
	u := seedUser(t, deps.users, "Ada", "ada@example.com")

	h := handlers.NewProfileHandler(deps.profiles, deps.accounts, nil, nil, nil)
	r := profileRouter(h, u.ID)

	w := doJSON(t, r, http.MethodDelete, "/api/profile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Msg string `json:"msg"`
	}
	decodeInto(t, w, &body)
	if body.Msg != "User deleted" {
		t.Fatalf("unexpected msg %q", body.Msg)
	}

	if _, err := deps.users.GetByID(context.Background(), u.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected user to be gone, got %v", err)
	}
	if got := len(deps.jobs.Jobs()); got != 1 {
		t.Fatalf("expected one purge job, got %d", got)
	}

	// the account no longer exists
	w = doJSON(t, r, http.MethodDelete, "/api/profile", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestProfileGitHubRepos(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "unknown user", err: github.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "github down", err: github.ErrUnavailable, wantStatus: http.StatusNotFound},
		{name: "circuit open", err: github.ErrCircuitOpen, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh := fakeRepos{fn: func(ctx context.Context, username string) ([]github.Repo, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return []github.Repo{{Name: "dotfiles"}}, nil
			}}

			h := handlers.NewProfileHandler(&fakeProfilesRepo{}, nil, gh, nil, nil)
			r := profileRouter(h, newUUID())

			w := doJSON(t, r, http.MethodGet, "/api/profile/github/octocat", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.err != nil {
				if env := decodeErr(t, w); env.Error.Message != "No GitHub profile found" {
					t.Fatalf("unexpected message %q", env.Error.Message)
				}
			}
		})
	}
}
