package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suchiii29/campushub/internal/models"
	"github.com/suchiii29/campushub/internal/observability"
	"github.com/suchiii29/campushub/internal/storage"
)

// Service handles student ride bookings. Status transitions past
// "pending" belong to dispatch and are not exposed here.
type Service struct {
	Store storage.Store
}

// Create books a ride for a registered student. pickupTime must be
// RFC 3339; nothing is persisted when validation fails.
func (s *Service) Create(ctx context.Context, subject, source, destination, pickupTime string) (*models.Booking, error) {
	student, err := s.Store.StudentBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotRegistered
		}
		return nil, err
	}

	source = strings.TrimSpace(source)
	destination = strings.TrimSpace(destination)
	if source == "" || destination == "" || strings.TrimSpace(pickupTime) == "" {
		return nil, fmt.Errorf("%w: source, destination and pickup_time are required", models.ErrInvalidInput)
	}
	pickup, err := time.Parse(time.RFC3339, pickupTime)
	if err != nil {
		return nil, fmt.Errorf("%w: pickup_time must be ISO-8601", models.ErrInvalidInput)
	}

	b := &models.Booking{
		StudentID:   student.ID,
		Source:      source,
		Destination: destination,
		PickupTime:  pickup,
		Status:      models.BookingStatusPending,
	}
	if err := s.Store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	observability.BookingsCreated.Inc()
	return b, nil
}

// ListForStudent returns the caller's bookings, newest first.
func (s *Service) ListForStudent(ctx context.Context, subject string) ([]models.Booking, error) {
	student, err := s.Store.StudentBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotRegistered
		}
		return nil, err
	}
	return s.Store.BookingsByStudent(ctx, student.ID)
}

// ListPending returns every pending booking ordered by pickup time,
// soonest first.
func (s *Service) ListPending(ctx context.Context) ([]models.PendingBooking, error) {
	return s.Store.PendingBookings(ctx)
}
