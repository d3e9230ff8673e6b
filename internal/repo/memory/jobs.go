package memory

import (
	"context"
	"time"

	"github.com/geocoder89/devhub/internal/domain/job"
)

type JobsRepo struct {
	s *Store
}

func NewJobsRepo(s *Store) *JobsRepo {
	return &JobsRepo{s: s}
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for i, j := range r.s.jobs {
		if j.Status != job.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}

		j.Status = job.StatusProcessing
		j.LockedAt = &now
		j.LockedBy = &workerID
		j.UpdatedAt = now
		r.s.jobs[i] = j
		return j, nil
	}
	return job.Job{}, job.ErrJobNotFound
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusDone
		j.Attempts++
		j.LastError = nil
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Attempts++
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-lockTTL)
	var n int64
	for i, j := range r.s.jobs {
		if j.Status == job.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = job.StatusPending
			j.LockedAt = nil
			j.LockedBy = nil
			r.s.jobs[i] = j
			n++
		}
	}
	return n, nil
}

// Jobs returns a snapshot of every queued job.
func (r *JobsRepo) Jobs() []job.Job {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return append([]job.Job(nil), r.s.jobs...)
}

func (r *JobsRepo) update(id string, fn func(*job.Job)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.jobs {
		if r.s.jobs[i].ID == id {
			fn(&r.s.jobs[i])
			r.s.jobs[i].LockedAt = nil
			r.s.jobs[i].LockedBy = nil
			r.s.jobs[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return job.ErrJobNotFound
}
