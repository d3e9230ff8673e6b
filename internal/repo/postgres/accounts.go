package postgres

import (
	"context"

	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/jobs"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsRepo struct {
	base
	jobs *JobsRepo
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom, jobsRepo *JobsRepo) *AccountsRepo {
	return &AccountsRepo{base: base{pool: pool, prom: prom}, jobs: jobsRepo}
}

// DeleteAccount removes userID's profile and user record and, in the same
// transaction, enqueues the purge of their posts, likes and comments.
func (r *AccountsRepo) DeleteAccount(ctx context.Context, userID, requestID string) error {
	req, err := jobs.NewPurgeUserActivity(userID, requestID)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("accounts.delete_profile", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
			return err
		})
		if err != nil {
			return err
		}

		var deleted int64
		err = r.observe("accounts.delete_user", func() error {
			tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
			if err != nil {
				return err
			}
			deleted = tag.RowsAffected()
			return nil
		})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return user.ErrNotFound
		}

		_, err = r.jobs.CreateTx(ctx, tx, req)
		return err
	})
}
