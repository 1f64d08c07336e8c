package tests

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ridebot/internal/app"
	"ridebot/internal/domain"
	"ridebot/internal/handler"
	"ridebot/internal/ident"
	"ridebot/internal/service"
)

// ──────────────────────────────────────────────
// 6. WEBHOOK SURFACE
// ──────────────────────────────────────────────

func newWebhookRouter(userRepo *MockUserRepository, rideRepo *MockRideRepository, dedup *MockDedupStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	lifecycle := service.NewLifecycle(NewFixedAssignment(service.Assignment{
		DriverName:   "Kwame Mensah",
		CarDetails:   "Toyota Corolla - GR1234X",
		ETAMinutes:   7,
		FareEstimate: 23.50,
	}))
	conv := service.NewConversationService(nil, userRepo, rideRepo, nil, lifecycle, ident.New())

	return app.NewRouter(app.RouterDeps{
		WebhookHandler: handler.NewWebhookHandler(conv),
		RideHandler:    handler.NewRideHandler(rideRepo),
		DedupStore:     dedup,
	})
}

func postWebhook(t *testing.T, router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_RideCommand_RepliesTwiML(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	w := postWebhook(t, router, url.Values{
		"From": {"whatsapp:+233201234567"},
		"Body": {"ride"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "<Response>") || !strings.Contains(body, "<Message>") {
		t.Errorf("expected TwiML document, got %q", body)
	}
	if !strings.Contains(body, "share your current location") {
		t.Errorf("expected location prompt in reply, got %q", body)
	}
	if rideRepo.CountRides() != 1 {
		t.Errorf("expected ride created, got %d", rideRepo.CountRides())
	}
}

func TestWebhook_LocationShare_ParsesCoordinates(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusAwaitingLocation})
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	w := postWebhook(t, router, url.Values{
		"From":      {"whatsapp:+233201234567"},
		"Latitude":  {"5.6"},
		"Longitude": {"-0.2"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	ride := rideRepo.GetRide("r1")
	if ride.Status != domain.RideStatusAwaitingDestination {
		t.Errorf("expected status %s, got %s", domain.RideStatusAwaitingDestination, ride.Status)
	}
	if ride.CurrentLat != 5.6 || ride.CurrentLng != -0.2 {
		t.Errorf("expected pickup (5.6, -0.2), got (%v, %v)", ride.CurrentLat, ride.CurrentLng)
	}
}

func TestWebhook_MalformedCoordinates_CorrectivePromptNoStateChange(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	rideRepo.AddRide(&domain.Ride{ID: "r1", UserID: "u1", Status: domain.RideStatusAwaitingLocation})
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	w := postWebhook(t, router, url.Values{
		"From":      {"whatsapp:+233201234567"},
		"Latitude":  {"not-a-number"},
		"Longitude": {"-0.2"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), service.BadLocationReply()) {
		t.Errorf("expected corrective prompt, got %q", w.Body.String())
	}
	if rideRepo.GetRide("r1").Status != domain.RideStatusAwaitingLocation {
		t.Error("malformed coordinates must not change ride state")
	}
}

func TestWebhook_StoreFailure_GenericReplyWith200(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	rideRepo.CreateError = errTest("connection refused")
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	w := postWebhook(t, router, url.Values{
		"From": {"whatsapp:+233201234567"},
		"Body": {"ride"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 so the transport does not retry, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "try again later") {
		t.Errorf("expected generic error reply, got %q", w.Body.String())
	}
}

func TestWebhook_RedeliveredMessage_ReplaysReplyWithoutSecondTransition(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	form := url.Values{
		"From":       {"whatsapp:+233201234567"},
		"Body":       {"ride"},
		"MessageSid": {"SM123"},
	}

	first := postWebhook(t, router, form)
	second := postWebhook(t, router, form)

	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("redelivery must replay the original reply:\nfirst:  %q\nsecond: %q",
			first.Body.String(), second.Body.String())
	}
	if got := rideRepo.CreateCallCount; got != 1 {
		t.Errorf("expected a single ride creation across redeliveries, got %d", got)
	}
}

func TestWebhook_ErrorReplyIsNotCached_RedeliveryRetries(t *testing.T) {
	t.Parallel()

	userRepo := NewMockUserRepository()
	rideRepo := NewMockRideRepository()
	userRepo.AddUser(&domain.User{ID: "u1", Phone: "+233201234567"})
	rideRepo.CreateError = errTest("connection refused")
	router := newWebhookRouter(userRepo, rideRepo, NewMockDedupStore())

	form := url.Values{
		"From":       {"whatsapp:+233201234567"},
		"Body":       {"ride"},
		"MessageSid": {"SM456"},
	}

	first := postWebhook(t, router, form)
	if !strings.Contains(first.Body.String(), service.ErrorReply()) {
		t.Fatalf("expected generic error reply, got %q", first.Body.String())
	}

	// The store recovers; the transport redelivers the same message.
	rideRepo.CreateError = nil
	second := postWebhook(t, router, form)

	if !strings.Contains(second.Body.String(), "share your current location") {
		t.Errorf("redelivery after a transient failure must retry, got %q", second.Body.String())
	}
	if rideRepo.CountRides() != 1 {
		t.Errorf("expected the retry to create the ride, got %d", rideRepo.CountRides())
	}
}

// errTest builds a distinct error value for injection.
type errTest string

func (e errTest) Error() string { return string(e) }
