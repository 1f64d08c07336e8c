package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupPrefix = "dedup:message:"

// DedupTTL is how long a processed message SID is remembered. Twilio
// retries webhooks for minutes, not hours.
const DedupTTL = 30 * time.Minute

// DedupStore remembers replies for already-processed inbound messages so
// a redelivered webhook returns the original reply instead of replaying
// the state transition.
type DedupStore struct {
	client *redis.Client
}

// NewDedupStore creates a new DedupStore.
func NewDedupStore(client *redis.Client) *DedupStore {
	return &DedupStore{client: client}
}

// Reply returns the cached reply for a message SID, or ("", false) if
// the message has not been seen.
func (s *DedupStore) Reply(ctx context.Context, sid string) (string, bool, error) {
	reply, err := s.client.Get(ctx, dedupPrefix+sid).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return reply, true, nil
}

// Remember stores the reply produced for a message SID.
func (s *DedupStore) Remember(ctx context.Context, sid, reply string) error {
	return s.client.Set(ctx, dedupPrefix+sid, reply, DedupTTL).Err()
}
