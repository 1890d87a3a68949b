package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/suchiii29/campushub/internal/booking"
	"github.com/suchiii29/campushub/internal/dispatch"
	"github.com/suchiii29/campushub/internal/models"
	"github.com/suchiii29/campushub/internal/storage"
	"github.com/suchiii29/campushub/internal/tracking"
)

// stubVerifier resolves fixed bearer tokens to identities.
type stubVerifier map[string]models.Identity

func (v stubVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return models.Identity{}, context.Canceled // any error means 401 at the boundary
}

type testEnv struct {
	srv   *Server
	store *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clock := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tracker := &tracking.Service{
		Store: store,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}

	srv := NewServer(Deps{
		Store: store,
		Verifier: stubVerifier{
			"student-token": {Subject: "uid-student", Email: "s@campus.edu"},
			"driver-token":  {Subject: "uid-driver", Email: "d@campus.edu"},
			"fresh-token":   {Subject: "uid-fresh", Email: "f@campus.edu"},
		},
		Tracker:        tracker,
		Bookings:       &booking.Service{Store: store},
		Hub:            dispatch.NewHub(logger),
		Logger:         logger,
		AllowedOrigins: []string{"*"},
	})
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func (e *testEnv) registerStudent(t *testing.T, token, studentID string) {
	t.Helper()
	w, _ := e.do(t, "POST", "/student/register/", token, map[string]string{
		"student_id": studentID, "phone": "555-0100", "address": "Hostel A",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register student: status %d body %s", w.Code, w.Body.String())
	}
}

func (e *testEnv) seedDriverWithBus(busNumber string) {
	d := e.store.AddDriver(models.Driver{Subject: "uid-driver", DriverID: "DRV-1", IsAvailable: true})
	if busNumber != "" {
		e.store.AddBus(models.Bus{BusNumber: busNumber, DriverID: &d.ID, Status: models.BusStatusActive, IsActive: true})
	}
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, "GET", "/test/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestProtectedTestRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, "GET", "/protected-test/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if _, ok := body["detail"]; !ok {
		t.Fatalf("expected detail field, got %v", body)
	}

	w, _ = env.do(t, "GET", "/protected-test/", "bogus", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	w, body = env.do(t, "GET", "/protected-test/", "student-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	user, _ := body["user"].(map[string]any)
	if user["uid"] != "uid-student" {
		t.Fatalf("expected identity echo, got %v", body)
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/protected-test/", nil)
	req.Header.Set("Authorization", "just-a-token")
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed header, got %d", w.Code)
	}
}

func TestRegisterStudentValidation(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, "POST", "/student/register/", "student-token", map[string]string{"student_id": "S1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}

	env.registerStudent(t, "student-token", "S1")

	w, _ = env.do(t, "POST", "/student/register/", "student-token", map[string]string{
		"student_id": "S1", "phone": "555-0100", "address": "Hostel A",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate registration, got %d", w.Code)
	}
}

func TestBookingEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.registerStudent(t, "student-token", "S100")

	w, body := env.do(t, "POST", "/student/booking/create/", "student-token", map[string]string{
		"source": "A", "destination": "B", "pickup_time": "2025-01-01T10:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d body %s", w.Code, w.Body.String())
	}
	bk, _ := body["booking"].(map[string]any)
	if bk["status"] != "pending" {
		t.Fatalf("expected pending booking, got %v", body)
	}

	w, body = env.do(t, "GET", "/student/bookings/", "student-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list bookings: status %d", w.Code)
	}
	if body["count"] != float64(1) {
		t.Fatalf("expected exactly one booking, got %v", body)
	}
}

func TestBookingRequiresStudentRole(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, "POST", "/student/booking/create/", "fresh-token", map[string]string{
		"source": "A", "destination": "B", "pickup_time": "2025-01-01T10:00:00Z",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unregistered identity, got %d", w.Code)
	}
}

func TestBookingRejectsBadPickupTime(t *testing.T) {
	env := newTestEnv(t)
	env.registerStudent(t, "student-token", "S100")

	w, _ := env.do(t, "POST", "/student/booking/create/", "student-token", map[string]string{
		"source": "A", "destination": "B", "pickup_time": "next tuesday",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	_, body := env.do(t, "GET", "/student/bookings/", "student-token", nil)
	if body["count"] != float64(0) {
		t.Fatalf("partial booking persisted: %v", body)
	}
}

func TestDriverLocationUpdateNoBus(t *testing.T) {
	env := newTestEnv(t)
	env.seedDriverWithBus("") // driver only

	w, body := env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{
		"lat": 12.9, "lng": 77.6,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for no-bus report, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := body["data"].(map[string]any)
	if data["latitude"] != 12.9 {
		t.Fatalf("unexpected payload: %v", body)
	}

	// no history rows anywhere
	w, body = env.do(t, "GET", "/admin/buses/locations/", "", nil)
	if w.Code != http.StatusOK || body["count"] != float64(0) {
		t.Fatalf("expected empty fleet, got %d %v", w.Code, body)
	}
}

func TestDriverLocationUpdateWithBus(t *testing.T) {
	env := newTestEnv(t)
	env.seedDriverWithBus("BUS-1")

	w, body := env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{
		"lat": 12.9, "lng": 77.6, "speed": 30,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := body["data"].(map[string]any)
	if data["bus_number"] != "BUS-1" {
		t.Fatalf("expected bus payload, got %v", body)
	}

	// second report supersedes the first in the fleet view
	w, _ = env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{
		"lat": 13.0, "lng": 77.7, "speed": 35,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("second report: %d", w.Code)
	}

	w, body = env.do(t, "GET", "/admin/buses/locations/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fleet query: %d", w.Code)
	}
	if body["count"] != float64(1) {
		t.Fatalf("expected one fleet entry, got %v", body)
	}
	buses := body["buses"].([]any)
	entry := buses[0].(map[string]any)
	if entry["bus_number"] != "BUS-1" || entry["latitude"] != 13.0 {
		t.Fatalf("expected latest coordinates, got %v", entry)
	}
}

func TestDriverLocationUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedDriverWithBus("BUS-1")

	w, _ := env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{"lat": 12.9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing lng, got %d", w.Code)
	}

	w, _ = env.do(t, "POST", "/driver/location/update/", "student-token", map[string]any{"lat": 12.9, "lng": 77.6})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-driver, got %d", w.Code)
	}
}

func TestPublicDriverLocationEcho(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, "POST", "/driver/location/", "", map[string]any{
		"driverId": "DRV-9", "lat": 1.0, "lng": 2.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	data, _ := body["data"].(map[string]any)
	if data["driverId"] != "DRV-9" {
		t.Fatalf("expected echo, got %v", body)
	}
}

func TestPendingBookingsOrderedByPickup(t *testing.T) {
	env := newTestEnv(t)
	env.registerStudent(t, "student-token", "S100")

	for _, pickup := range []string{"2025-01-05T10:00:00Z", "2025-01-02T08:30:00Z", "2025-01-03T16:00:00Z"} {
		w, _ := env.do(t, "POST", "/student/booking/create/", "student-token", map[string]string{
			"source": "A", "destination": "B", "pickup_time": pickup,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create: %d", w.Code)
		}
	}

	w, body := env.do(t, "GET", "/admin/bookings/pending/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending: %d", w.Code)
	}
	list := body["bookings"].([]any)
	var prev time.Time
	for i, raw := range list {
		entry := raw.(map[string]any)
		ts, err := time.Parse(time.RFC3339, entry["pickup_time"].(string))
		if err != nil {
			t.Fatalf("bad pickup_time: %v", err)
		}
		if i > 0 && ts.Before(prev) {
			t.Fatalf("pending not in pickup order at %d", i)
		}
		prev = ts
	}
}

func TestBusHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedDriverWithBus("BUS-1")

	w, _ := env.do(t, "GET", "/admin/buses/NOPE/history/", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bus, got %d", w.Code)
	}

	for _, c := range [][2]float64{{12.9, 77.6}, {13.0, 77.7}} {
		env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{"lat": c[0], "lng": c[1]})
	}

	w, body := env.do(t, "GET", "/admin/buses/BUS-1/history/?limit=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	if body["count"] != float64(1) {
		t.Fatalf("limit not applied: %v", body)
	}
	locs := body["locations"].([]any)
	if locs[0].(map[string]any)["latitude"] != 13.0 {
		t.Fatalf("expected newest row first, got %v", locs)
	}
}

func TestNearbyBusesValidation(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, "GET", "/buses/nearby/", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without coordinates, got %d", w.Code)
	}

	env.seedDriverWithBus("BUS-1")
	env.do(t, "POST", "/driver/location/update/", "driver-token", map[string]any{"lat": 12.9, "lng": 77.6})

	w, body := env.do(t, "GET", "/buses/nearby/?lat=12.9&lng=77.6&radius=1000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("nearby: %d", w.Code)
	}
	if body["count"] != float64(1) {
		t.Fatalf("expected one nearby bus, got %v", body)
	}
}
