package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridebot/internal/domain"
	"ridebot/internal/ident"
	"ridebot/internal/redis"
	"ridebot/internal/repository"
	"ridebot/internal/repository/postgres"
)

// Recognized commands, matched after trimming and lower-casing.
const (
	commandRide    = "ride"
	commandHistory = "history"
)

// historyLimit caps the history reply at the most recent rides.
const historyLimit = 5

// InboundMessage is one inbound event from the conversation transport.
type InboundMessage struct {
	Phone string
	Body  string

	HasLocation bool
	Latitude    float64
	Longitude   float64
}

// ConversationService routes inbound events to ride transitions and
// produces the reply text. Row writes commit only after the lifecycle
// call succeeds; on failure nothing is persisted and the caller sends a
// generic error reply.
type ConversationService struct {
	db        *sql.DB
	userRepo  repository.UserRepository
	rideRepo  repository.RideRepository
	cache     redis.CacheStoreInterface
	lifecycle *Lifecycle
	ids       *ident.Generator
	now       func() time.Time
}

// NewConversationService creates a new ConversationService. db may be
// nil, in which case requests run against the repositories directly
// instead of a per-request transaction.
func NewConversationService(
	db *sql.DB,
	userRepo repository.UserRepository,
	rideRepo repository.RideRepository,
	cache redis.CacheStoreInterface,
	lifecycle *Lifecycle,
	ids *ident.Generator,
) *ConversationService {
	return &ConversationService{
		db:        db,
		userRepo:  userRepo,
		rideRepo:  rideRepo,
		cache:     cache,
		lifecycle: lifecycle,
		ids:       ids,
		now:       time.Now,
	}
}

// HandleInbound processes one inbound event and returns the reply text.
func (s *ConversationService) HandleInbound(ctx context.Context, msg InboundMessage) (string, error) {
	if strings.TrimSpace(msg.Phone) == "" {
		return "", ErrInvalidPhone
	}

	if s.db == nil {
		reply, resolved, err := s.handle(ctx, s.userRepo, s.rideRepo, msg)
		if err != nil {
			return "", err
		}
		s.cacheUser(ctx, resolved)
		return reply, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	reply, resolved, err := s.handle(ctx, postgres.NewUserRepositoryWithTx(tx), postgres.NewRideRepositoryWithTx(tx), msg)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	// Cache only after commit. A user cached during the transaction
	// would outlive a rollback and shadow the store for the whole TTL.
	s.cacheUser(ctx, resolved)

	return reply, nil
}

// cacheUser writes a store-resolved user to the cache. resolved is nil
// when the user was already served from cache. Failures are ignored:
// the cache is an optimization, not a source of truth.
func (s *ConversationService) cacheUser(ctx context.Context, resolved *domain.User) {
	if s.cache == nil || resolved == nil {
		return
	}
	_ = s.cache.SetUser(ctx, resolved)
}

// handle routes one event against the given repositories. resolved is
// the user when it was loaded from the store or created in this
// request; the caller caches it once the writes are durable.
func (s *ConversationService) handle(
	ctx context.Context,
	users repository.UserRepository,
	rides repository.RideRepository,
	msg InboundMessage,
) (reply string, resolved *domain.User, err error) {
	user, fresh, err := s.lookupUser(ctx, users, msg.Phone)
	if errors.Is(err, repository.ErrNotFound) {
		return s.createUser(ctx, users, msg.Phone)
	}
	if err != nil {
		return "", nil, err
	}
	if fresh {
		resolved = user
	}

	text := strings.ToLower(strings.TrimSpace(msg.Body))

	if text == commandHistory {
		reply, err = s.historyReply(ctx, rides, user.ID)
		return reply, resolved, err
	}

	if msg.HasLocation {
		locReply, handled, err := s.handleLocation(ctx, rides, user.ID, msg)
		if err != nil || handled {
			return locReply, resolved, err
		}
		// No ride was collecting a location: fall through to commands.
	}

	if text == commandRide {
		reply, err = s.handleRideCommand(ctx, rides, user.ID)
		return reply, resolved, err
	}

	return replyHelp, resolved, nil
}

// lookupUser resolves a user by phone, going through the cache when one
// is configured. fresh reports that the user came from the store, so it
// is worth caching once the request commits. Cache failures degrade to
// the store.
func (s *ConversationService) lookupUser(ctx context.Context, users repository.UserRepository, phone string) (user *domain.User, fresh bool, err error) {
	if s.cache != nil {
		if cached, err := s.cache.GetUserByPhone(ctx, phone); err == nil && cached != nil {
			return cached, false, nil
		}
	}

	user, err = users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}

// createUser registers a first-time contact and replies with the
// welcome prompt. The message that triggered registration is not
// processed further, matching the conversation flow riders expect: the
// first exchange is always the welcome.
func (s *ConversationService) createUser(ctx context.Context, users repository.UserRepository, phone string) (string, *domain.User, error) {
	user := &domain.User{
		ID:        s.ids.NextID(),
		Phone:     phone,
		CreatedAt: s.now(),
	}

	if err := users.Create(ctx, user); err != nil {
		return "", nil, err
	}

	return replyWelcome, user, nil
}

// handleLocation applies a location share to the user's active ride.
// handled is false when no ride is collecting a location, so the router
// can fall through to command matching.
func (s *ConversationService) handleLocation(
	ctx context.Context,
	rides repository.RideRepository,
	userID string,
	msg InboundMessage,
) (reply string, handled bool, err error) {
	ride, err := rides.GetActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if ride.Status != domain.RideStatusAwaitingLocation && ride.Status != domain.RideStatusAwaitingDestination {
		return "", false, nil
	}

	expected := ride.Status
	next, reply, err := s.lifecycle.ShareLocation(*ride, msg.Latitude, msg.Longitude)
	if errors.Is(err, ErrInvalidCoordinates) {
		return replyBadLocation, true, nil
	}
	if err != nil {
		return "", false, err
	}

	if err := rides.UpdateIfStatus(ctx, &next, expected); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// A concurrent event advanced the ride first; this share
			// lost the race and is dropped without a partial write.
			return s.lifecycle.ProgressReply(*ride), true, nil
		}
		return "", false, err
	}

	return reply, true, nil
}

// handleRideCommand starts a booking, or re-prompts for the pending
// step when one is already in progress.
func (s *ConversationService) handleRideCommand(ctx context.Context, rides repository.RideRepository, userID string) (string, error) {
	active, err := rides.GetActiveForUser(ctx, userID)
	if err == nil {
		return s.lifecycle.ProgressReply(*active), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	ride, reply := s.lifecycle.RequestRide(userID, s.ids.NextID(), s.now())
	if err := rides.Create(ctx, &ride); err != nil {
		if errors.Is(err, repository.ErrActiveRideExists) {
			// Two rapid "ride" commands raced; the other one won.
			return replyRequestLocation, nil
		}
		return "", err
	}

	return reply, nil
}

// historyReply formats the user's most recent rides, newest first.
func (s *ConversationService) historyReply(ctx context.Context, rides repository.RideRepository, userID string) (string, error) {
	recent, err := rides.ListRecentForUser(ctx, userID, historyLimit)
	if err != nil {
		return "", err
	}

	if len(recent) == 0 {
		return replyNoHistory, nil
	}

	var b strings.Builder
	b.WriteString("Your recent rides:\n")
	for _, ride := range recent {
		fmt.Fprintf(&b, "- Ride on %s to %s (Status: %s)\n",
			ride.RideStart.Format("2006-01-02 15:04"), ride.Destination, ride.Status)
	}

	return b.String(), nil
}

// ErrorReply is the fixed reply sent when request handling fails.
func ErrorReply() string {
	return replyTryAgain
}

// BadLocationReply is the corrective prompt sent when a location share
// carries coordinates that cannot be parsed.
func BadLocationReply() string {
	return replyBadLocation
}
