package tests

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridebot/internal/domain"
	"ridebot/internal/repository"
	"ridebot/internal/service"
)

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
	GetError    error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CountUsers returns the number of stored users.
func (m *MockUserRepository) CountUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. It
// enforces the same single-active-ride invariant the store does.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError   error
	UpdateError   error
	ListError     error
	UpdateErrByID map[string]error

	// Panic injection for scheduler recovery tests
	ListPanic bool
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// GetRide returns a ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

// CountRides returns the number of stored rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.UserID == ride.UserID && r.Status.Active() {
			return repository.ErrActiveRideExists
		}
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetActiveForUser(ctx context.Context, userID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.UserID == userID && r.Status.Active() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRideRepository) ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	if m.ListPanic {
		panic("list rides exploded")
	}
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		for _, s := range statuses {
			if r.Status == s {
				copy := *r
				result = append(result, &copy)
				break
			}
		}
	}
	return result, nil
}

func (m *MockRideRepository) ListRecentForUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if r.UserID == userID {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RideStart.After(result[j].RideStart)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockRideRepository) UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if err, ok := m.UpdateErrByID[ride.ID]; ok {
		return err
	}
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusConflict
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

// ──────────────────────────────────────────────
// FIXED ASSIGNMENT POLICY
// ──────────────────────────────────────────────

// FixedAssignment is an AssignmentPolicy returning a fixed assignment.
type FixedAssignment struct {
	Assignment service.Assignment
}

// NewFixedAssignment creates a deterministic assignment policy.
func NewFixedAssignment(a service.Assignment) *FixedAssignment {
	return &FixedAssignment{Assignment: a}
}

func (p *FixedAssignment) Assign() service.Assignment {
	return p.Assignment
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records notifications for verification.
type MockNotifier struct {
	mu   sync.Mutex
	sent []service.Notification

	// Error injection
	NotifyError error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (n *MockNotifier) Notify(ctx context.Context, recipient, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, service.Notification{Recipient: recipient, Text: text})
	if n.NotifyError != nil {
		return n.NotifyError
	}
	return nil
}

// Sent returns a snapshot of the recorded notifications.
func (n *MockNotifier) Sent() []service.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]service.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of the sweep lock.
type MockLockStore struct {
	mu sync.Mutex

	Acquired     bool
	AcquireError error

	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a mock lock store that grants the lock.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{Acquired: true}
}

func (m *MockLockStore) AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	return m.Acquired, nil
}

func (m *MockLockStore) ReleaseSweepLock(ctx context.Context) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is an in-memory user cache keyed by phone.
type MockCacheStore struct {
	mu    sync.Mutex
	users map[string]*domain.User

	// Counters for verification
	SetCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{users: make(map[string]*domain.User)}
}

// GetUserByPhone returns (nil, nil) on a miss, like the Redis store.
func (m *MockCacheStore) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[phone]
	if !ok {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (m *MockCacheStore) SetUser(ctx context.Context, user *domain.User) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *user
	m.users[user.Phone] = &copy
	return nil
}

func (m *MockCacheStore) InvalidateUser(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, phone)
	return nil
}

// CachedUsers returns the number of cached users.
func (m *MockCacheStore) CachedUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// ──────────────────────────────────────────────
// COMMIT-FAIL DATABASE
// ──────────────────────────────────────────────

// ErrCommitRefused is the error returned by the commit-fail database.
var ErrCommitRefused = errors.New("commit refused")

// NewCommitFailDB opens a database whose statements succeed but whose
// transactions always fail to commit, to exercise rollback paths.
// Queries return no rows and writes report one affected row.
func NewCommitFailDB() *sql.DB {
	return sql.OpenDB(commitFailConnector{})
}

type commitFailConnector struct{}

func (commitFailConnector) Connect(context.Context) (driver.Conn, error) {
	return commitFailConn{}, nil
}

func (commitFailConnector) Driver() driver.Driver { return commitFailDriver{} }

type commitFailDriver struct{}

func (commitFailDriver) Open(string) (driver.Conn, error) { return commitFailConn{}, nil }

type commitFailConn struct{}

func (commitFailConn) Prepare(string) (driver.Stmt, error) { return noRowsStmt{}, nil }
func (commitFailConn) Close() error                        { return nil }
func (commitFailConn) Begin() (driver.Tx, error)           { return commitFailTx{}, nil }

type commitFailTx struct{}

func (commitFailTx) Commit() error   { return ErrCommitRefused }
func (commitFailTx) Rollback() error { return nil }

type noRowsStmt struct{}

func (noRowsStmt) Close() error  { return nil }
func (noRowsStmt) NumInput() int { return -1 }

func (noRowsStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (noRowsStmt) Query([]driver.Value) (driver.Rows, error) { return noRows{}, nil }

type noRows struct{}

func (noRows) Columns() []string         { return nil }
func (noRows) Close() error              { return nil }
func (noRows) Next([]driver.Value) error { return io.EOF }

// ──────────────────────────────────────────────
// MOCK DEDUP STORE
// ──────────────────────────────────────────────

// MockDedupStore is an in-memory dedup store.
type MockDedupStore struct {
	mu      sync.Mutex
	replies map[string]string
}

// NewMockDedupStore creates a new mock dedup store.
func NewMockDedupStore() *MockDedupStore {
	return &MockDedupStore{replies: make(map[string]string)}
}

func (m *MockDedupStore) Reply(ctx context.Context, sid string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, ok := m.replies[sid]
	return reply, ok, nil
}

func (m *MockDedupStore) Remember(ctx context.Context, sid, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[sid] = reply
	return nil
}
