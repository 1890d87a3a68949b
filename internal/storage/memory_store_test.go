package storage

import (
	"context"
	"testing"
	"time"

	"github.com/suchiii29/campushub/internal/models"
)

func TestCreateStudentDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.Student{Subject: "uid-1", StudentID: "S1", Phone: "555", Address: "A"}
	if err := store.CreateStudent(ctx, first); err != nil {
		t.Fatalf("first create: %v", err)
	}

	dupSubject := &models.Student{Subject: "uid-1", StudentID: "S2", Phone: "555", Address: "A"}
	if err := store.CreateStudent(ctx, dupSubject); err != models.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists for duplicate subject, got %v", err)
	}

	dupStudentID := &models.Student{Subject: "uid-2", StudentID: "S1", Phone: "555", Address: "A"}
	if err := store.CreateStudent(ctx, dupStudentID); err != models.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists for duplicate student id, got %v", err)
	}
}

// Latest-row resolution must be deterministic when timestamps collide:
// the higher row id (later insert) wins.
func TestLatestLocationTieBreakOnEqualTimestamps(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	d := store.AddDriver(models.Driver{Subject: "uid-1", DriverID: "DRV-1"})
	store.AddBus(models.Bus{BusNumber: "BUS-1", DriverID: &d.ID, Status: models.BusStatusActive, IsActive: true})

	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if _, err := store.RecordDriverLocation(ctx, d.ID, 10, 20, 0, at); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RecordDriverLocation(ctx, d.ID, 11, 21, 0, at); err != nil {
		t.Fatal(err)
	}

	positions, err := store.ActiveBusPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	if positions[0].Latitude != 11 {
		t.Fatalf("expected later insert to win the tie, got %+v", positions[0])
	}

	history, err := store.BusLocationHistory(ctx, "BUS-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Latitude != 11 {
		t.Fatalf("expected later insert first in history, got %+v", history)
	}
}

func TestRecordDriverLocationUnknownDriver(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.RecordDriverLocation(context.Background(), 42, 1, 2, 0, time.Now()); err != models.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
