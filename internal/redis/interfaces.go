package redis

import (
	"context"
	"time"

	"ridebot/internal/domain"
)

// LockStoreInterface defines the interface for the scheduler sweep lock.
type LockStoreInterface interface {
	AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context) error
}

// CacheStoreInterface defines the interface for user profile caching.
type CacheStoreInterface interface {
	GetUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	SetUser(ctx context.Context, user *domain.User) error
	InvalidateUser(ctx context.Context, phone string) error
}

// DedupStoreInterface defines the interface for inbound message
// deduplication.
type DedupStoreInterface interface {
	Reply(ctx context.Context, sid string) (string, bool, error)
	Remember(ctx context.Context, sid, reply string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface  = (*LockStore)(nil)
	_ CacheStoreInterface = (*CacheStore)(nil)
	_ DedupStoreInterface = (*DedupStore)(nil)
)
