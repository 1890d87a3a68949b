package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/suchiii29/campushub/internal/models"
	"github.com/suchiii29/campushub/internal/storage"
)

type capturedEvents struct{ published []models.BusPosition }

func (c *capturedEvents) PublishPosition(pos models.BusPosition) error {
	c.published = append(c.published, pos)
	return nil
}

type capturedBcast struct{ sent []models.BusPosition }

func (c *capturedBcast) Broadcast(pos models.BusPosition) { c.sent = append(c.sent, pos) }

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func seedDriver(store *storage.MemoryStore, subject, driverID string) *models.Driver {
	return store.AddDriver(models.Driver{Subject: subject, DriverID: driverID, IsAvailable: true})
}

func TestReportLocationNoBusAssigned(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDriver(store, "uid-1", "DRV-1")
	svc := &Service{Store: store, Now: fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))}

	report, err := svc.ReportLocation(context.Background(), "uid-1", 12.9, 77.6, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.BusAssigned {
		t.Fatal("expected no bus assigned")
	}

	// cache updated
	d, err := store.DriverBySubject(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("driver lookup: %v", err)
	}
	if d.CurrentLatitude == nil || *d.CurrentLatitude != 12.9 {
		t.Fatalf("driver cache latitude not updated: %+v", d)
	}
	if d.LastLocationUpdate == nil {
		t.Fatal("last_location_update not set")
	}

	// no history anywhere
	buses, err := store.ActiveBusPositions(context.Background())
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(buses) != 0 {
		t.Fatalf("expected no positions, got %d", len(buses))
	}
}

func TestReportLocationAppendsHistoryForActiveBus(t *testing.T) {
	store := storage.NewMemoryStore()
	d := seedDriver(store, "uid-1", "DRV-1")
	store.AddBus(models.Bus{BusNumber: "BUS-1", DriverID: &d.ID, Status: models.BusStatusActive, IsActive: true})

	events := &capturedEvents{}
	bcast := &capturedBcast{}
	svc := &Service{Store: store, Events: events, Bcast: bcast, Now: fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))}

	first, err := svc.ReportLocation(context.Background(), "uid-1", 12.9, 77.6, 20)
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	if !first.BusAssigned || first.BusNumber != "BUS-1" {
		t.Fatalf("expected BUS-1 assignment, got %+v", first)
	}

	second, err := svc.ReportLocation(context.Background(), "uid-1", 13.0, 77.7, 25)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if second.RecordedAt.Before(first.RecordedAt) {
		t.Fatalf("timestamps went backwards: %v then %v", first.RecordedAt, second.RecordedAt)
	}

	history, err := store.BusLocationHistory(context.Background(), "BUS-1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if history[0].Latitude != 13.0 {
		t.Fatalf("newest row should be second report, got %+v", history[0])
	}

	if len(events.published) != 2 || events.published[1].BusNumber != "BUS-1" {
		t.Fatalf("expected 2 published positions, got %+v", events.published)
	}
	if len(bcast.sent) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(bcast.sent))
	}
	if events.published[0].DriverID != "DRV-1" {
		t.Fatalf("published position missing driver id: %+v", events.published[0])
	}
}

func TestReportLocationUnknownDriver(t *testing.T) {
	svc := &Service{Store: storage.NewMemoryStore()}
	if _, err := svc.ReportLocation(context.Background(), "nobody", 1, 1, 0); err != models.ErrNotRegistered {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestReportLocationRejectsBadCoordinates(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDriver(store, "uid-1", "DRV-1")
	svc := &Service{Store: store}

	for _, c := range []struct{ lat, lng float64 }{{91, 0}, {-91, 0}, {0, 181}, {0, -181}} {
		if _, err := svc.ReportLocation(context.Background(), "uid-1", c.lat, c.lng, 0); err == nil {
			t.Fatalf("expected error for (%v, %v)", c.lat, c.lng)
		}
	}
}

func TestListActiveBusLocationsLatestAndOrdering(t *testing.T) {
	store := storage.NewMemoryStore()
	d1 := seedDriver(store, "uid-1", "DRV-1")
	d2 := seedDriver(store, "uid-2", "DRV-2")
	store.AddBus(models.Bus{BusNumber: "BUS-2", DriverID: &d2.ID, Status: models.BusStatusActive, IsActive: true})
	store.AddBus(models.Bus{BusNumber: "BUS-1", DriverID: &d1.ID, Status: models.BusStatusActive, IsActive: true})
	store.AddBus(models.Bus{BusNumber: "BUS-3", Status: models.BusStatusInactive, IsActive: false})
	store.AddBus(models.Bus{BusNumber: "BUS-4", Status: models.BusStatusActive, IsActive: true}) // never reports

	svc := &Service{Store: store, Now: fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))}

	if _, err := svc.ReportLocation(context.Background(), "uid-2", 10, 20, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReportLocation(context.Background(), "uid-1", 11, 21, 6); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReportLocation(context.Background(), "uid-1", 12, 22, 7); err != nil {
		t.Fatal(err)
	}

	positions, err := svc.ListActiveBusLocations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions (inactive and silent buses omitted), got %d", len(positions))
	}
	if positions[0].BusNumber != "BUS-1" || positions[1].BusNumber != "BUS-2" {
		t.Fatalf("expected bus-number ordering, got %s then %s", positions[0].BusNumber, positions[1].BusNumber)
	}
	if positions[0].Latitude != 12 || positions[0].Longitude != 22 {
		t.Fatalf("expected latest coordinates for BUS-1, got %+v", positions[0])
	}
	if positions[0].DriverID != "DRV-1" {
		t.Fatalf("expected driver id on position, got %+v", positions[0])
	}
}

func TestBusHistoryUnknownBus(t *testing.T) {
	svc := &Service{Store: storage.NewMemoryStore()}
	if _, err := svc.BusHistory(context.Background(), "NOPE", 10); err != models.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNearbyBusesStoreFallback(t *testing.T) {
	store := storage.NewMemoryStore()
	d1 := seedDriver(store, "uid-1", "DRV-1")
	d2 := seedDriver(store, "uid-2", "DRV-2")
	store.AddBus(models.Bus{BusNumber: "NEAR", DriverID: &d1.ID, Status: models.BusStatusActive, IsActive: true})
	store.AddBus(models.Bus{BusNumber: "FAR", DriverID: &d2.ID, Status: models.BusStatusActive, IsActive: true})

	svc := &Service{Store: store, Now: fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))}
	if _, err := svc.ReportLocation(context.Background(), "uid-1", 12.9000, 77.6000, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReportLocation(context.Background(), "uid-2", 13.9000, 78.6000, 0); err != nil {
		t.Fatal(err)
	}

	near, err := svc.NearbyBuses(context.Background(), 12.9001, 77.6001, 2000, 10)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(near) != 1 || near[0].BusNumber != "NEAR" {
		t.Fatalf("expected only NEAR within 2km, got %+v", near)
	}
}

func TestHaversineZero(t *testing.T) {
	if d := Haversine(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}
