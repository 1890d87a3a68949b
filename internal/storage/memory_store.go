package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suchiii29/campushub/internal/models"
)

// MemoryStore keeps everything behind one mutex. It backs local runs
// without Postgres and the unit tests; RecordDriverLocation is atomic
// by construction.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	students  map[int64]*models.Student
	drivers   map[int64]*models.Driver
	buses     map[int64]*models.Bus
	locations []models.BusLocation
	latest    map[int64]models.BusLocation // busID -> newest row
	bookings  map[int64]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[int64]*models.Student),
		drivers:  make(map[int64]*models.Driver),
		buses:    make(map[int64]*models.Bus),
		latest:   make(map[int64]models.BusLocation),
		bookings: make(map[int64]*models.Booking),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// AddDriver seeds a driver record. Used by local runs and tests.
func (m *MemoryStore) AddDriver(d models.Driver) *models.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	m.drivers[d.ID] = &d
	return &d
}

// AddBus seeds a bus record. Used by local runs and tests.
func (m *MemoryStore) AddBus(b models.Bus) *models.Bus {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	m.buses[b.ID] = &b
	return &b
}

func (m *MemoryStore) CreateStudent(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.Subject == s.Subject || existing.StudentID == s.StudentID {
			return models.ErrAlreadyExists
		}
	}
	s.ID = m.id()
	s.CreatedAt = time.Now()
	cp := *s
	m.students[s.ID] = &cp
	return nil
}

func (m *MemoryStore) StudentBySubject(ctx context.Context, subject string) (*models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.Subject == subject {
			cp := *s
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) DriverBySubject(ctx context.Context, subject string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Subject == subject {
			cp := *d
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) RecordDriverLocation(ctx context.Context, driverPK int64, lat, lng, speed float64, at time.Time) (LocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drivers[driverPK]
	if !ok {
		return LocationResult{}, models.ErrNotFound
	}
	d.CurrentLatitude = &lat
	d.CurrentLongitude = &lng
	t := at
	d.LastLocationUpdate = &t

	var bus *models.Bus
	for _, b := range m.buses {
		if b.DriverID != nil && *b.DriverID == driverPK && b.IsActive {
			bus = b
			break
		}
	}
	if bus == nil {
		return LocationResult{BusAssigned: false}, nil
	}

	loc := models.BusLocation{
		ID:         m.id(),
		BusID:      bus.ID,
		Latitude:   lat,
		Longitude:  lng,
		Speed:      speed,
		RecordedAt: at,
	}
	m.locations = append(m.locations, loc)
	m.latest[bus.ID] = loc
	return LocationResult{BusAssigned: true, BusNumber: bus.BusNumber, Location: loc}, nil
}

func (m *MemoryStore) ActiveBusPositions(ctx context.Context) ([]models.BusPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.BusPosition
	for _, b := range m.buses {
		if !b.IsActive {
			continue
		}
		loc, ok := m.latest[b.ID]
		if !ok {
			continue
		}
		pos := models.BusPosition{
			BusNumber:  b.BusNumber,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			Speed:      loc.Speed,
			RecordedAt: loc.RecordedAt,
		}
		if b.DriverID != nil {
			if d, ok := m.drivers[*b.DriverID]; ok {
				pos.DriverID = d.DriverID
			}
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusNumber < out[j].BusNumber })
	return out, nil
}

func (m *MemoryStore) BusLocationHistory(ctx context.Context, busNumber string, limit int) ([]models.BusLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var busID int64 = -1
	for _, b := range m.buses {
		if b.BusNumber == busNumber {
			busID = b.ID
			break
		}
	}
	if busID < 0 {
		return nil, models.ErrNotFound
	}

	var out []models.BusLocation
	for _, l := range m.locations {
		if l.BusID == busID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) BookingsByStudent(ctx context.Context, studentPK int64) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.StudentID == studentPK {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) PendingBookings(ctx context.Context) ([]models.PendingBooking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PendingBooking
	for _, b := range m.bookings {
		if b.Status != models.BookingStatusPending {
			continue
		}
		studentID := ""
		if s, ok := m.students[b.StudentID]; ok {
			studentID = s.StudentID
		}
		out = append(out, models.PendingBooking{
			BookingID:   b.ID,
			StudentID:   studentID,
			Source:      b.Source,
			Destination: b.Destination,
			PickupTime:  b.PickupTime,
			CreatedAt:   b.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PickupTime.Equal(out[j].PickupTime) {
			return out[i].PickupTime.Before(out[j].PickupTime)
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out, nil
}
