package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/geocoder89/devhub/internal/db"
	"github.com/geocoder89/devhub/internal/domain/job"
	"github.com/geocoder89/devhub/internal/domain/post"
	"github.com/geocoder89/devhub/internal/domain/profile"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/jobs"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a disposable database: TEST_DB_DSN=postgres://... go test ./internal/repo/postgres
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	if err := db.RunMigrations(dsn, "../../../migrations", slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := db.NewPool(dsn, 10)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(context.Background(), `TRUNCATE jobs, posts, profiles, users`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func createUser(t *testing.T, repo *UsersRepo, name string) user.User {
	t.Helper()

	u, err := repo.Create(context.Background(), user.New(name, name+"@example.com", "hash", "https://avatar/"+name))
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func TestUsersRepo_Postgres(t *testing.T) {
	pool := testPool(t)
	repo := NewUsersRepo(pool, nil)
	ctx := context.Background()

	u := createUser(t, repo, "ana")

	if _, err := repo.Create(ctx, user.New("dup", "ANA@example.com", "h", "")); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, "ana@example.com")
	if err != nil || got.ID != u.ID || got.PasswordHash != "hash" {
		t.Fatalf("GetByEmail: %+v err=%v", got, err)
	}

	if _, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfilesRepo_Postgres(t *testing.T) {
	pool := testPool(t)
	u := createUser(t, NewUsersRepo(pool, nil), "ben")
	repo := NewProfilesRepo(pool, nil)
	ctx := context.Background()

	p, created, err := repo.Upsert(ctx, u.ID, profile.Fields{Status: "Developer", Skills: []string{"go", "sql"}})
	if err != nil || !created {
		t.Fatalf("upsert: created=%v err=%v", created, err)
	}
	if p.Owner == nil || p.Owner.Name != "ben" {
		t.Fatalf("expected owner snapshot, got %+v", p.Owner)
	}

	exp, err := profile.NewExperience(profile.ExperienceRequest{Title: "Eng", Company: "Acme", From: "2020-01-01"})
	if err != nil {
		t.Fatalf("NewExperience: %v", err)
	}

	p, err = repo.Mutate(ctx, u.ID, func(p *profile.Profile) error {
		p.AddExperience(exp)
		return nil
	})
	if err != nil || len(p.Experiences) != 1 {
		t.Fatalf("mutate: %+v err=%v", p.Experiences, err)
	}

	got, err := repo.GetByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if len(got.Experiences) != 1 || got.Experiences[0].ID != exp.ID || got.Experiences[0].Description != profile.DefaultDescription {
		t.Fatalf("experience not persisted: %+v", got.Experiences)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %d err=%v", len(list), err)
	}
}

func TestPostsRepo_Postgres_ConcurrentLikes(t *testing.T) {
	pool := testPool(t)
	repo := NewPostsRepo(pool, nil)
	ctx := context.Background()

	p, _ := post.New("11111111-1111-1111-1111-111111111111", user.Snapshot{Name: "o"}, "hello")
	if _, err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Mutate(ctx, p.ID, func(p *post.Post) error {
				return p.Like(fmt.Sprintf("user-%d", i))
			}); err != nil {
				t.Errorf("like: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil || len(got.Likes) != n {
		t.Fatalf("expected %d likes, got %d err=%v", n, len(got.Likes), err)
	}
}

func TestAccountsRepo_Postgres_DeleteAndPurge(t *testing.T) {
	pool := testPool(t)
	users := NewUsersRepo(pool, nil)
	gone := createUser(t, users, "gone")
	stays := createUser(t, users, "stays")
	ctx := context.Background()

	_, _, _ = NewProfilesRepo(pool, nil).Upsert(ctx, gone.ID, profile.Fields{Status: "Dev", Skills: []string{"go"}})

	posts := NewPostsRepo(pool, nil)
	own, _ := post.New(gone.ID, gone.Snapshot(), "mine")
	other, _ := post.New(stays.ID, stays.Snapshot(), "theirs")
	_ = other.Like(gone.ID)
	_, _ = other.AddComment(gone.ID, gone.Snapshot(), "bye")
	_, _ = posts.Create(ctx, own)
	_, _ = posts.Create(ctx, other)

	jobsRepo := NewJobsRepo(pool, nil)
	if err := NewAccountsRepo(pool, nil, jobsRepo).DeleteAccount(ctx, gone.ID, "req"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	queued, err := jobsRepo.GetByIdempotencyKey(ctx, jobs.PurgeUserActivityKey(gone.ID))
	if err != nil || queued.Status != job.StatusPending {
		t.Fatalf("expected pending purge job, got %+v err=%v", queued, err)
	}

	claimed, err := jobsRepo.ClaimNext(ctx, "test-worker")
	if err != nil || claimed.ID != queued.ID {
		t.Fatalf("ClaimNext: %+v err=%v", claimed, err)
	}

	res, err := posts.PurgeUser(ctx, gone.ID)
	if err != nil || res.PostsDeleted != 1 || res.PostsUpdated != 1 {
		t.Fatalf("PurgeUser: %+v err=%v", res, err)
	}
	if err := jobsRepo.MarkDone(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	got, _ := posts.GetByID(ctx, other.ID)
	if len(got.Likes) != 0 || len(got.Comments) != 0 {
		t.Fatalf("expected stripped post, got %+v", got)
	}
}
