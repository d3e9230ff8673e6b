package memory

import (
	"context"

	"github.com/geocoder89/devhub/internal/domain/job"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/jobs"
)

type AccountsRepo struct {
	s *Store
}

func NewAccountsRepo(s *Store) *AccountsRepo {
	return &AccountsRepo{s: s}
}

func (r *AccountsRepo) DeleteAccount(_ context.Context, userID, requestID string) error {
	req, err := jobs.NewPurgeUserActivity(userID, requestID)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return user.ErrNotFound
	}

	delete(r.s.profiles, userID)
	delete(r.s.users, userID)

	for _, existing := range r.s.jobs {
		if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *req.IdempotencyKey {
			return nil
		}
	}
	r.s.jobs = append(r.s.jobs, job.New(req))
	return nil
}
