package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridebot/internal/domain"
)

// UserCacheTTL bounds staleness of cached user profiles. Profiles only
// gain fields after creation, so a short TTL is enough.
const UserCacheTTL = 5 * time.Minute

const userCachePrefix = "cache:user:phone:"

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// cachedUser is the serialized form of a cached user profile.
type cachedUser struct {
	ID         string    `json:"id"`
	Phone      string    `json:"phone"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetUserByPhone retrieves a user from cache. A cache miss returns
// (nil, nil).
func (s *CacheStore) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	data, err := s.client.Get(ctx, userCachePrefix+phone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:         cached.ID,
		Phone:      cached.Phone,
		Registered: cached.Registered,
		CreatedAt:  cached.CreatedAt,
	}, nil
}

// SetUser stores a user profile in cache.
func (s *CacheStore) SetUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(cachedUser{
		ID:         user.ID,
		Phone:      user.Phone,
		Registered: user.Registered,
		CreatedAt:  user.CreatedAt,
	})
	if err != nil {
		return err
	}

	return s.client.Set(ctx, userCachePrefix+user.Phone, data, UserCacheTTL).Err()
}

// InvalidateUser removes a user's cache entry.
func (s *CacheStore) InvalidateUser(ctx context.Context, phone string) error {
	return s.client.Del(ctx, userCachePrefix+phone).Err()
}
