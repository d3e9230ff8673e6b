package jobs

import (
	"time"

	"github.com/geocoder89/devhub/internal/domain/job"
)

// TypePurgeUserActivity removes a deleted account's posts, likes and comments.
const TypePurgeUserActivity = "user.purge_activity"

type PurgeUserActivityPayload struct {
	UserID      string    `json:"userId"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}

func IsKnownType(t string) bool {
	switch t {
	case TypePurgeUserActivity:
		return true
	default:
		return false
	}
}

// PurgeUserActivityKey dedupes purge jobs per account.
func PurgeUserActivityKey(userID string) string {
	return "user:purge:" + userID
}

// NewPurgeUserActivity builds the enqueue request for a deleted account.
func NewPurgeUserActivity(userID, requestID string) (job.CreateRequest, error) {
	payload := PurgeUserActivityPayload{
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	}

	raw, err := EncodePayload(TypePurgeUserActivity, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	key := PurgeUserActivityKey(userID)

	return job.CreateRequest{
		Type:           TypePurgeUserActivity,
		Payload:        raw,
		MaxAttempts:    10,
		IdempotencyKey: &key,
	}, nil
}
