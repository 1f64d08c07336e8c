package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ridebot/internal/domain"
	"ridebot/internal/repository"
	"ridebot/internal/service"
)

// ──────────────────────────────────────────────
// 3. RIDE UPDATE SCHEDULER
// ──────────────────────────────────────────────

func newSweepScheduler(rideRepo *MockRideRepository, userRepo *MockUserRepository, notifier *MockNotifier, lock *MockLockStore) *service.Scheduler {
	lifecycle := service.NewLifecycle(service.NewRandomAssignment())
	if lock == nil {
		return service.NewScheduler(time.Minute, rideRepo, userRepo, lifecycle, notifier, nil, nil)
	}
	return service.NewScheduler(time.Minute, rideRepo, userRepo, lifecycle, notifier, lock, nil)
}

func TestScheduler_Tick_DecrementsETA(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{
		ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched,
		DriverName: "Ama Ofori", ETAMinutes: 5, FareEstimate: 30.00,
	})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	ride := rideRepo.GetRide("r1")
	if ride.ETAMinutes != 4 {
		t.Errorf("expected ETA 4, got %d", ride.ETAMinutes)
	}
	if ride.Status != domain.RideStatusDriverMatched {
		t.Errorf("expected status %s, got %s", domain.RideStatusDriverMatched, ride.Status)
	}

	sent := notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if sent[0].Recipient != "+233200000001" {
		t.Errorf("expected notification to rider's phone, got %s", sent[0].Recipient)
	}
	if !strings.Contains(sent[0].Text, "on the way") || !strings.Contains(sent[0].Text, "ETA: 4 minutes") {
		t.Errorf("expected ETA update text, got %q", sent[0].Text)
	}
}

func TestScheduler_ETAReachesZero_RideStartsAndArrivalSent(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{
		ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched,
		DriverName: "Ama Ofori", ETAMinutes: 1,
	})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	ride := rideRepo.GetRide("r1")
	if ride.Status != domain.RideStatusOnRide {
		t.Errorf("expected status %s, got %s", domain.RideStatusOnRide, ride.Status)
	}
	if ride.ETAMinutes != 0 {
		t.Errorf("expected ETA 0, got %d", ride.ETAMinutes)
	}

	sent := notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Text, "has arrived") {
		t.Errorf("expected arrival message, got %q", sent[0].Text)
	}
	if strings.Contains(sent[0].Text, "ETA") {
		t.Errorf("arrival must not be an ETA update, got %q", sent[0].Text)
	}
}

func TestScheduler_ETAMonotonic_ExactlyOneArrival(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{
		ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched,
		DriverName: "John Doe", ETAMinutes: 3, FareEstimate: 42.17,
	})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)

	prevETA := 3
	for i := 0; i < 6; i++ {
		s.Sweep(context.Background())
		ride := rideRepo.GetRide("r1")
		if ride.ETAMinutes > prevETA {
			t.Fatalf("ETA increased from %d to %d", prevETA, ride.ETAMinutes)
		}
		prevETA = ride.ETAMinutes
	}

	ride := rideRepo.GetRide("r1")
	if ride.Status != domain.RideStatusOnRide {
		t.Errorf("expected ride to end up on_ride, got %s", ride.Status)
	}

	arrivals := 0
	for _, n := range notifier.Sent() {
		if strings.Contains(n.Text, "has arrived") {
			arrivals++
		}
	}
	if arrivals != 1 {
		t.Errorf("expected exactly one arrival notification, got %d", arrivals)
	}

	// Ticks after the ride started must not keep messaging the rider.
	if got := len(notifier.Sent()); got != 3 {
		t.Errorf("expected 3 notifications (ETA 2, ETA 1, arrival), got %d", got)
	}
}

func TestScheduler_OnRideRides_AreNotTicked(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{
		ID: "r1", UserID: "u1", Status: domain.RideStatusOnRide,
		DriverName: "Ama Ofori", ETAMinutes: 0,
	})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	if len(notifier.Sent()) != 0 {
		t.Errorf("expected no notifications for on_ride rides, got %d", len(notifier.Sent()))
	}
	if rideRepo.UpdateCallCount != 0 {
		t.Error("on_ride rides must not be updated by the scheduler")
	}
}

func TestScheduler_FareNeverRecomputed(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{
		ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched,
		DriverName: "John Doe", CarDetails: "Hyundai Elantra - GT5678Z",
		ETAMinutes: 4, FareEstimate: 42.17,
	})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	for i := 0; i < 5; i++ {
		s.Sweep(context.Background())
	}

	ride := rideRepo.GetRide("r1")
	if ride.FareEstimate != 42.17 {
		t.Errorf("fare changed to %v after ticks", ride.FareEstimate)
	}
	if ride.DriverName != "John Doe" || ride.CarDetails != "Hyundai Elantra - GT5678Z" {
		t.Error("driver assignment changed after ticks")
	}
}

func TestScheduler_PerRideFailure_DoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	userRepo.AddUser(&domain.User{ID: "u2", Phone: "+233200000002"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 5})
	rideRepo.AddRide(&domain.Ride{ID: "r2", UserID: "u2", Status: domain.RideStatusDriverMatched, DriverName: "B", ETAMinutes: 5})
	rideRepo.UpdateErrByID = map[string]error{"r1": errors.New("connection reset")}

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	if got := rideRepo.GetRide("r2").ETAMinutes; got != 4 {
		t.Errorf("expected healthy ride to advance to ETA 4, got %d", got)
	}

	sent := notifier.Sent()
	if len(sent) != 1 || sent[0].Recipient != "+233200000002" {
		t.Errorf("expected exactly one notification to the healthy rider, got %+v", sent)
	}
}

func TestScheduler_LostRace_SkipsTickSilently(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 5})
	rideRepo.UpdateErrByID = map[string]error{"r1": repository.ErrStatusConflict}

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	if len(notifier.Sent()) != 0 {
		t.Error("a lost update race must not produce a notification")
	}
}

func TestScheduler_NotifierFailure_DoesNotRollBackTransition(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	notifier.NotifyError = errors.New("gateway timeout")
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 1})

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)
	s.Sweep(context.Background())

	if rideRepo.GetRide("r1").Status != domain.RideStatusOnRide {
		t.Error("state transition must stand even when delivery fails")
	}
}

func TestScheduler_PanickingSweep_IsRecovered(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	rideRepo.ListPanic = true
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()

	s := newSweepScheduler(rideRepo, userRepo, notifier, nil)

	// Must not panic the caller.
	s.Sweep(context.Background())
}

func TestScheduler_LockHeldElsewhere_SkipsSweep(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 5})

	lock := NewMockLockStore()
	lock.Acquired = false

	s := newSweepScheduler(rideRepo, userRepo, notifier, lock)
	s.Sweep(context.Background())

	if rideRepo.GetRide("r1").ETAMinutes != 5 {
		t.Error("sweep must be skipped when another replica holds the lock")
	}
	if lock.ReleaseCallCount != 0 {
		t.Error("a lock that was not acquired must not be released")
	}
}

func TestScheduler_LockStoreDown_SweepsAnyway(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 5})

	lock := NewMockLockStore()
	lock.AcquireError = errors.New("redis down")

	s := newSweepScheduler(rideRepo, userRepo, notifier, lock)
	s.Sweep(context.Background())

	if rideRepo.GetRide("r1").ETAMinutes != 4 {
		t.Error("sweep must proceed when the lock store is unavailable")
	}
}

func TestScheduler_StartStop_IsDeterministic(t *testing.T) {
	t.Parallel()

	rideRepo := NewMockRideRepository()
	userRepo := NewMockUserRepository()
	notifier := NewMockNotifier()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233200000001"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusDriverMatched, DriverName: "A", ETAMinutes: 60})

	lifecycle := service.NewLifecycle(service.NewRandomAssignment())
	s := service.NewScheduler(5*time.Millisecond, rideRepo, userRepo, lifecycle, notifier, nil, nil)

	s.Start()
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	// Stop waits for the loop: no ticks may land after it returns.
	ticked := rideRepo.GetRide("r1").ETAMinutes
	if ticked == 60 {
		t.Error("expected at least one tick while running")
	}
	time.Sleep(20 * time.Millisecond)
	if got := rideRepo.GetRide("r1").ETAMinutes; got != ticked {
		t.Errorf("tick landed after Stop: ETA moved from %d to %d", ticked, got)
	}
}
