package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/suchiii29/campushub/internal/models"
	"github.com/suchiii29/campushub/internal/observability"
	"github.com/suchiii29/campushub/internal/storage"
)

// Publisher pushes accepted bus positions onto the event stream.
type Publisher interface {
	PublishPosition(pos models.BusPosition) error
}

// Broadcaster fans an accepted position out to live-tracking clients.
type Broadcaster interface {
	Broadcast(pos models.BusPosition)
}

// LiveIndex is a read-side geo index of latest bus positions,
// maintained off the event stream.
type LiveIndex interface {
	Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]models.BusPosition, error)
}

// Report is the outcome of one coordinate report. When BusAssigned is
// false only the driver's cached position moved; no history was
// written.
type Report struct {
	BusAssigned bool
	BusNumber   string
	Latitude    float64
	Longitude   float64
	Speed       float64
	RecordedAt  time.Time
}

// Service is the location ingestor and fleet query surface. Events and
// Live are optional; a nil Publisher or Broadcaster just skips the
// fan-out.
type Service struct {
	Store  storage.Store
	Events Publisher
	Live   LiveIndex
	Bcast  Broadcaster
	Now    func() time.Time

	HistoryLimit int // default page size for BusHistory
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ReportLocation records one GPS fix from a driver. The driver's cache
// always updates; a history row is written only when the driver has an
// active bus. Publish and broadcast failures never fail the report.
func (s *Service) ReportLocation(ctx context.Context, subject string, lat, lng, speed float64) (Report, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Report{}, fmt.Errorf("%w: coordinates out of range", models.ErrInvalidInput)
	}
	if speed < 0 {
		speed = 0
	}

	driver, err := s.Store.DriverBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return Report{}, models.ErrNotRegistered
		}
		return Report{}, err
	}

	res, err := s.Store.RecordDriverLocation(ctx, driver.ID, lat, lng, speed, s.now())
	if err != nil {
		return Report{}, err
	}

	observability.LocationReportsTotal.WithLabelValues(strconv.FormatBool(res.BusAssigned)).Inc()
	if !res.BusAssigned {
		return Report{Latitude: lat, Longitude: lng, Speed: speed}, nil
	}
	observability.HistoryRowsTotal.Inc()

	pos := models.BusPosition{
		BusNumber:  res.BusNumber,
		Latitude:   res.Location.Latitude,
		Longitude:  res.Location.Longitude,
		Speed:      res.Location.Speed,
		RecordedAt: res.Location.RecordedAt,
		DriverID:   driver.DriverID,
	}
	if s.Events != nil {
		_ = s.Events.PublishPosition(pos) // best effort
	}
	if s.Bcast != nil {
		s.Bcast.Broadcast(pos)
	}

	return Report{
		BusAssigned: true,
		BusNumber:   res.BusNumber,
		Latitude:    res.Location.Latitude,
		Longitude:   res.Location.Longitude,
		Speed:       res.Location.Speed,
		RecordedAt:  res.Location.RecordedAt,
	}, nil
}

// ListActiveBusLocations returns the latest position of every active
// bus that has reported at least once, ordered by bus number.
func (s *Service) ListActiveBusLocations(ctx context.Context) ([]models.BusPosition, error) {
	return s.Store.ActiveBusPositions(ctx)
}

// BusHistory returns recent history rows for one bus, newest first.
func (s *Service) BusHistory(ctx context.Context, busNumber string, limit int) ([]models.BusLocation, error) {
	if limit <= 0 {
		limit = s.HistoryLimit
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.Store.BusLocationHistory(ctx, busNumber, limit)
}

// NearbyBuses finds active buses within radiusM meters of a point.
// Prefers the live geo index when one is wired; otherwise filters the
// fleet list by haversine distance.
func (s *Service) NearbyBuses(ctx context.Context, lat, lng, radiusM float64, limit int) ([]models.BusPosition, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", models.ErrInvalidInput)
	}
	if radiusM <= 0 {
		radiusM = 5000
	}
	if limit <= 0 {
		limit = 50
	}
	if s.Live != nil {
		return s.Live.Nearby(ctx, lat, lng, radiusM, limit)
	}

	all, err := s.Store.ActiveBusPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.BusPosition, 0, len(all))
	for _, p := range all {
		if Haversine(lat, lng, p.Latitude, p.Longitude) <= radiusM {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
