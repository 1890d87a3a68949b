package models

import "time"

// Identity is the verified result of a bearer-token check: a stable
// subject identifier assigned by the identity provider plus the email
// claim when present.
type Identity struct {
	Subject string `json:"uid"`
	Email   string `json:"email,omitempty"`
}

type Student struct {
	ID        int64     `json:"-"`
	Subject   string    `json:"-"`
	StudentID string    `json:"student_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Driver struct {
	ID            int64  `json:"-"`
	Subject       string `json:"-"`
	DriverID      string `json:"driver_id"`
	LicenseNumber string `json:"license_number,omitempty"`
	Phone         string `json:"phone,omitempty"`
	IsAvailable   bool   `json:"is_available"`

	// Last-known position cache. Convenience fields only: bus-level
	// queries always read the bus_locations history, never these.
	CurrentLatitude    *float64   `json:"current_latitude,omitempty"`
	CurrentLongitude   *float64   `json:"current_longitude,omitempty"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type BusStatus string

const (
	BusStatusActive      BusStatus = "active"
	BusStatusMaintenance BusStatus = "maintenance"
	BusStatusInactive    BusStatus = "inactive"
)

type Bus struct {
	ID        int64     `json:"-"`
	BusNumber string    `json:"bus_number"`
	Capacity  int       `json:"capacity"`
	DriverID  *int64    `json:"-"` // nullable; a bus may have no driver
	Status    BusStatus `json:"status"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Route struct {
	ID               int64     `json:"-"`
	Name             string    `json:"name"`
	Source           string    `json:"source"`
	Destination      string    `json:"destination"`
	Stops            []string  `json:"stops"`
	EstimatedMinutes int       `json:"estimated_duration"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// BusLocation is one append-only history row. Rows are never updated
// or deleted once written.
type BusLocation struct {
	ID         int64     `json:"-"`
	BusID      int64     `json:"-"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"` // km/h
	RecordedAt time.Time `json:"timestamp"`
}

// BusPosition is the latest-known position of one active bus, as served
// by fleet queries and streamed to live-map subscribers.
type BusPosition struct {
	BusNumber  string    `json:"bus_number"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	RecordedAt time.Time `json:"timestamp"`
	DriverID   string    `json:"driver,omitempty"` // campus driver id, empty when unassigned
}

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

type Booking struct {
	ID          int64         `json:"id"`
	StudentID   int64         `json:"-"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	PickupTime  time.Time     `json:"pickup_time"`
	Status      BookingStatus `json:"status"`
	BusID       *int64        `json:"-"` // assigned by dispatch, nullable
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"-"`
}

// PendingBooking is the admin dispatch view of a booking: joined with
// the student's campus id so dispatchers know who is waiting.
type PendingBooking struct {
	BookingID   int64     `json:"id"`
	StudentID   string    `json:"student_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	PickupTime  time.Time `json:"pickup_time"`
	CreatedAt   time.Time `json:"created_at"`
}

type TripStatus string

const (
	TripStatusScheduled  TripStatus = "scheduled"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

type Trip struct {
	ID             int64      `json:"id"`
	BusID          int64      `json:"-"`
	RouteID        int64      `json:"-"`
	DriverID       int64      `json:"-"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         TripStatus `json:"status"`
	PassengerCount int        `json:"passenger_count"`
	CreatedAt      time.Time  `json:"created_at"`
}
