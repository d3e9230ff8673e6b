package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/devhub/internal/domain/job"
)

type fakeJobsRepo struct {
	mu          sync.Mutex
	queue       []job.Job
	done        []string
	failed      map[string]string
	rescheduled map[string]time.Time
}

func newFakeJobsRepo(jobs ...job.Job) *fakeJobsRepo {
	return &fakeJobsRepo{
		queue:       jobs,
		failed:      map[string]string{},
		rescheduled: map[string]time.Time{},
	}
}

func (f *fakeJobsRepo) ClaimNext(_ context.Context, _ string) (job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}
	j := f.queue[0]
	f.queue = f.queue[1:]
	j.Status = job.StatusProcessing
	return j, nil
}

func (f *fakeJobsRepo) MarkDone(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(_ context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = msg
	return nil
}

func (f *fakeJobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduled[id] = runAt
	return nil
}

func (f *fakeJobsRepo) RequeueStaleProcessing(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func newTestWorker(repo JobsRepository) *Worker {
	return New(Config{WorkerID: "test"}, repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestProcessOne_NoJob(t *testing.T) {
	w := newTestWorker(newFakeJobsRepo())

	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle poll, got processed=%v err=%v", processed, err)
	}
}

func TestProcessOne_Done(t *testing.T) {
	j := job.New(job.CreateRequest{Type: "user.purge_activity"})
	repo := newFakeJobsRepo(j)
	w := newTestWorker(repo)

	var ran string
	w.Handle("user.purge_activity", func(_ context.Context, got job.Job) error {
		ran = got.ID
		return nil
	})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("expected processed job, got processed=%v err=%v", processed, err)
	}
	if ran != j.ID {
		t.Fatalf("handler did not run for job %s", j.ID)
	}
	if len(repo.done) != 1 || repo.done[0] != j.ID {
		t.Fatalf("expected job marked done, got %v", repo.done)
	}
}

func TestProcessOne_RetryThenFail(t *testing.T) {
	retryable := job.New(job.CreateRequest{Type: "user.purge_activity", MaxAttempts: 3})
	last := job.New(job.CreateRequest{Type: "user.purge_activity", MaxAttempts: 3})
	last.Attempts = 2

	repo := newFakeJobsRepo(retryable, last)
	w := newTestWorker(repo)
	w.Handle("user.purge_activity", func(context.Context, job.Job) error {
		return errors.New("db unavailable")
	})

	before := time.Now()
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	runAt, ok := repo.rescheduled[retryable.ID]
	if !ok {
		t.Fatalf("expected first job to be rescheduled")
	}
	if runAt.Before(before.Add(backoffBase)) {
		t.Fatalf("expected backoff of at least %s, got run_at %s", backoffBase, runAt)
	}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if repo.failed[last.ID] != "db unavailable" {
		t.Fatalf("expected exhausted job marked failed, got %v", repo.failed)
	}
}

func TestProcessOne_UnknownTypeFailsImmediately(t *testing.T) {
	j := job.New(job.CreateRequest{Type: "mystery"})
	repo := newFakeJobsRepo(j)
	w := newTestWorker(repo)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatalf("expected job with no handler to fail, got %v", repo.failed)
	}
}

func TestProcessOne_RecoversPanics(t *testing.T) {
	j := job.New(job.CreateRequest{Type: "user.purge_activity"})
	repo := newFakeJobsRepo(j)
	w := newTestWorker(repo)
	w.Handle("user.purge_activity", func(context.Context, job.Job) error {
		panic("nil map")
	})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if _, ok := repo.rescheduled[j.ID]; !ok {
		t.Fatalf("expected panicking job to be rescheduled")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := newFakeJobsRepo()
	w := New(Config{WorkerID: "test", PollInterval: 5 * time.Millisecond, Concurrency: 2},
		repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if !w.Ready() {
		t.Fatalf("expected worker ready while running")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	if w.Ready() {
		t.Fatalf("expected worker not ready after shutdown")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{3, 16 * time.Second},
		{20, backoffCap},
	}

	for _, tt := range tests {
		got := ExponentialBackoff(tt.attempt)
		if got < tt.min || got > tt.min+250*time.Millisecond {
			t.Errorf("ExponentialBackoff(%d) = %s, want within [%s, %s]", tt.attempt, got, tt.min, tt.min+250*time.Millisecond)
		}
	}
}
