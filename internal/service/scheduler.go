package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"ridebot/internal/domain"
	"ridebot/internal/redis"
	"ridebot/internal/repository"
)

// Scheduler advances in-transit rides on a fixed interval and notifies
// riders of progress. It is owned by the process composition root:
// Start launches the loop, Stop halts it deterministically. Sweeps
// never overlap; the next tick waits until the previous sweep returns.
type Scheduler struct {
	interval  time.Duration
	rideRepo  repository.RideRepository
	userRepo  repository.UserRepository
	lifecycle *Lifecycle
	notifier  Notifier
	lockStore redis.LockStoreInterface
	nrApp     *newrelic.Application

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a new Scheduler. lockStore and nrApp may be nil.
func NewScheduler(
	interval time.Duration,
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	lifecycle *Lifecycle,
	notifier Notifier,
	lockStore redis.LockStoreInterface,
	nrApp *newrelic.Application,
) *Scheduler {
	return &Scheduler{
		interval:  interval,
		rideRepo:  rideRepo,
		userRepo:  userRepo,
		lifecycle: lifecycle,
		notifier:  notifier,
		lockStore: lockStore,
		nrApp:     nrApp,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the scheduler loop in a background goroutine.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.runSweep()
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// runSweep wraps a sweep in a New Relic background transaction.
func (s *Scheduler) runSweep() {
	ctx := context.Background()

	if s.nrApp != nil {
		txn := s.nrApp.StartTransaction("scheduler/ride-updates")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	s.Sweep(ctx)
}

// Sweep loads all rides with a driver on the way and ticks each one.
// Rides already on_ride are excluded: they were ticked to completion of
// the pickup phase and have nothing left to count down. Each ride is an
// independent unit of work; one failure is logged and the rest of the
// batch proceeds. A panicking sweep is recovered so the next scheduled
// run happens normally.
func (s *Scheduler) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: sweep panicked: %v", r)
		}
	}()

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireSweepLock(ctx, s.interval)
		if err != nil {
			// Lock store down: sweep anyway. A duplicate ETA message
			// beats rides that never advance.
			log.Printf("scheduler: sweep lock unavailable: %v", err)
		} else if !acquired {
			return
		} else {
			defer func() {
				_ = s.lockStore.ReleaseSweepLock(ctx)
			}()
		}
	}

	rides, err := s.rideRepo.ListByStatus(ctx, domain.RideStatusDriverMatched)
	if err != nil {
		log.Printf("scheduler: list rides: %v", err)
		return
	}

	for _, ride := range rides {
		s.tickRide(ctx, ride)
	}
}

// tickRide advances one ride and sends its notification. The persist is
// conditional on the ride still being driver_matched, so a concurrent
// webhook write cannot be clobbered; losing that race skips the tick.
func (s *Scheduler) tickRide(ctx context.Context, ride *domain.Ride) {
	next, text := s.lifecycle.Tick(*ride)

	if err := s.rideRepo.UpdateIfStatus(ctx, &next, domain.RideStatusDriverMatched); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return
		}
		log.Printf("scheduler: update ride %s: %v", ride.ID, err)
		return
	}

	user, err := s.userRepo.GetByID(ctx, ride.UserID)
	if err != nil {
		log.Printf("scheduler: resolve rider for ride %s: %v", ride.ID, err)
		return
	}

	if err := s.notifier.Notify(ctx, user.Phone, text); err != nil {
		// Best-effort delivery; the state transition stands.
		log.Printf("scheduler: notify %s: %v", user.Phone, err)
	}
}
