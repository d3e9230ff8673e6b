package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/devhub/internal/domain/job"
)

var ErrNoHandler = errors.New("no handler registered for job type")

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed so callers can skip the poll delay while the queue is busy.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) || errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, err
	}

	// a claimed job finishes even when shutdown starts mid-run
	runCtx, cancelRun := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancelRun()

	start := time.Now()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}
	err = w.execute(runCtx, j)
	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}

	if err != nil {
		result := w.handleFailure(runCtx, j, err)
		w.observe(j.Type, result, time.Since(start))
		return true, nil
	}

	if err := w.repo.MarkDone(runCtx, j.ID); err != nil {
		_ = w.repo.MarkFailed(runCtx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.observe(j.Type, "done", time.Since(start))
	w.log.Info("job done", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts+1)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) (err error) {
	h, ok := w.handlers[j.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, j.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return h(ctx, j)
}

// handleFailure reschedules j with backoff, or marks it failed once its
// attempts are exhausted. It returns the metrics result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	msg := cause.Error()

	if j.Exhausted() || errors.Is(cause, ErrNoHandler) {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.Error("mark job failed", "job_id", j.ID, "err", err)
		}
		w.log.Error("job failed permanently", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts+1, "err", msg)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.log.Error("reschedule job", "job_id", j.ID, "err", err)
	}
	w.log.Warn("job rescheduled", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1, "run_at", runAt, "err", msg)
	return "retry"
}

func (w *Worker) observe(jobType, result string, d time.Duration) {
	if w.prom != nil {
		w.prom.ObserveJob(jobType, result, d)
	}
}
