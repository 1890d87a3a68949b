package storage

import (
	"context"
	"time"

	"github.com/suchiii29/campushub/internal/models"
)

// LocationResult is the outcome of recording one driver coordinate
// report. BusAssigned is false when the driver has no active bus; the
// driver cache is still updated in that case and Location is zero.
type LocationResult struct {
	BusAssigned bool
	BusNumber   string
	Location    models.BusLocation
}

// Store defines persistence for the transit entities. Implementations
// must make RecordDriverLocation atomic: the driver-cache update, the
// history append and the latest-position projection either all commit
// or none do.
type Store interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	StudentBySubject(ctx context.Context, subject string) (*models.Student, error)

	DriverBySubject(ctx context.Context, subject string) (*models.Driver, error)

	RecordDriverLocation(ctx context.Context, driverPK int64, lat, lng, speed float64, at time.Time) (LocationResult, error)
	ActiveBusPositions(ctx context.Context) ([]models.BusPosition, error)
	BusLocationHistory(ctx context.Context, busNumber string, limit int) ([]models.BusLocation, error)

	CreateBooking(ctx context.Context, b *models.Booking) error
	BookingsByStudent(ctx context.Context, studentPK int64) ([]models.Booking, error)
	PendingBookings(ctx context.Context) ([]models.PendingBooking, error)
}
