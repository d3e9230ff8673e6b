package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/devhub/internal/domain/job"
	"github.com/geocoder89/devhub/internal/domain/post"
)

type ActivityPurger interface {
	PurgeUser(ctx context.Context, userID string) (post.PurgeResult, error)
}

// PurgeUserActivity handles TypePurgeUserActivity. Purging is idempotent,
// so a retry after a partial run is safe.
func PurgeUserActivity(purger ActivityPurger, log *slog.Logger) func(context.Context, job.Job) error {
	return func(ctx context.Context, j job.Job) error {
		decoded, err := DecodePayload(j)
		if err != nil {
			return err
		}

		p, ok := decoded.(PurgeUserActivityPayload)
		if !ok {
			return ErrPayloadTypeMismatch
		}

		res, err := purger.PurgeUser(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("purge user %s: %w", p.UserID, err)
		}

		log.InfoContext(ctx, "user activity purged",
			"user_id", p.UserID,
			"posts_deleted", res.PostsDeleted,
			"posts_updated", res.PostsUpdated,
			"request_id", p.RequestID,
		)
		return nil
	}
}
