package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/suchiii29/campushub/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreateStudent(ctx context.Context, s *models.Student) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO students(subject, student_id, email, phone, address)
		 VALUES($1,$2,$3,$4,$5) RETURNING id, created_at`,
		s.Subject, s.StudentID, s.Email, s.Phone, s.Address,
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrAlreadyExists
	}
	return err
}

func (p *PostgresStore) StudentBySubject(ctx context.Context, subject string) (*models.Student, error) {
	var s models.Student
	err := p.db.QueryRowContext(ctx,
		`SELECT id, subject, student_id, email, phone, address, created_at
		 FROM students WHERE subject=$1`, subject,
	).Scan(&s.ID, &s.Subject, &s.StudentID, &s.Email, &s.Phone, &s.Address, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) DriverBySubject(ctx context.Context, subject string) (*models.Driver, error) {
	var d models.Driver
	var lat, lng sql.NullFloat64
	var upd sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT id, subject, driver_id, license_number, phone, is_available,
		        current_latitude, current_longitude, last_location_update, created_at
		 FROM drivers WHERE subject=$1`, subject,
	).Scan(&d.ID, &d.Subject, &d.DriverID, &d.LicenseNumber, &d.Phone, &d.IsAvailable,
		&lat, &lng, &upd, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		d.CurrentLatitude = &lat.Float64
	}
	if lng.Valid {
		d.CurrentLongitude = &lng.Float64
	}
	if upd.Valid {
		d.LastLocationUpdate = &upd.Time
	}
	return &d, nil
}

// RecordDriverLocation runs the whole ingest path in one transaction:
// refresh the driver's position cache, then append a history row and
// upsert the latest-position projection when an active bus is assigned.
func (p *PostgresStore) RecordDriverLocation(ctx context.Context, driverPK int64, lat, lng, speed float64, at time.Time) (LocationResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return LocationResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE drivers SET current_latitude=$2, current_longitude=$3, last_location_update=$4 WHERE id=$1`,
		driverPK, lat, lng, at)
	if err != nil {
		return LocationResult{}, fmt.Errorf("update driver cache: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return LocationResult{}, models.ErrNotFound
	}

	var busID int64
	var busNumber string
	err = tx.QueryRowContext(ctx,
		`SELECT id, bus_number FROM buses WHERE driver_id=$1 AND is_active = TRUE`,
		driverPK).Scan(&busID, &busNumber)
	if errors.Is(err, sql.ErrNoRows) {
		// Valid state: driver idle between shifts. Commit the cache
		// update, write no history.
		if err := tx.Commit(); err != nil {
			return LocationResult{}, fmt.Errorf("commit: %w", err)
		}
		return LocationResult{BusAssigned: false}, nil
	}
	if err != nil {
		return LocationResult{}, fmt.Errorf("resolve active bus: %w", err)
	}

	loc := models.BusLocation{BusID: busID, Latitude: lat, Longitude: lng, Speed: speed, RecordedAt: at}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO bus_locations(bus_id, latitude, longitude, speed, recorded_at)
		 VALUES($1,$2,$3,$4,$5) RETURNING id`,
		busID, lat, lng, speed, at).Scan(&loc.ID)
	if err != nil {
		return LocationResult{}, fmt.Errorf("append history: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bus_latest_locations(bus_id, location_id, latitude, longitude, speed, recorded_at)
		 VALUES($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (bus_id) DO UPDATE SET
		   location_id=EXCLUDED.location_id, latitude=EXCLUDED.latitude,
		   longitude=EXCLUDED.longitude, speed=EXCLUDED.speed, recorded_at=EXCLUDED.recorded_at`,
		busID, loc.ID, lat, lng, speed, at)
	if err != nil {
		return LocationResult{}, fmt.Errorf("upsert projection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return LocationResult{}, fmt.Errorf("commit: %w", err)
	}
	return LocationResult{BusAssigned: true, BusNumber: busNumber, Location: loc}, nil
}

// ActiveBusPositions reads the projection table, one row per bus, in a
// single query. Buses that never reported drop out of the join.
func (p *PostgresStore) ActiveBusPositions(ctx context.Context) ([]models.BusPosition, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT b.bus_number, l.latitude, l.longitude, l.speed, l.recorded_at, d.driver_id
		 FROM buses b
		 JOIN bus_latest_locations l ON l.bus_id = b.id
		 LEFT JOIN drivers d ON d.id = b.driver_id
		 WHERE b.is_active = TRUE
		 ORDER BY b.bus_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BusPosition
	for rows.Next() {
		var pos models.BusPosition
		var driverID sql.NullString
		if err := rows.Scan(&pos.BusNumber, &pos.Latitude, &pos.Longitude, &pos.Speed, &pos.RecordedAt, &driverID); err != nil {
			return nil, err
		}
		pos.DriverID = driverID.String
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (p *PostgresStore) BusLocationHistory(ctx context.Context, busNumber string, limit int) ([]models.BusLocation, error) {
	var busID int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM buses WHERE bus_number=$1`, busNumber).Scan(&busID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, bus_id, latitude, longitude, speed, recorded_at
		 FROM bus_locations WHERE bus_id=$1
		 ORDER BY recorded_at DESC, id DESC LIMIT $2`, busID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BusLocation
	for rows.Next() {
		var l models.BusLocation
		if err := rows.Scan(&l.ID, &l.BusID, &l.Latitude, &l.Longitude, &l.Speed, &l.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO bookings(student_id, source, destination, pickup_time, status)
		 VALUES($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		b.StudentID, b.Source, b.Destination, b.PickupTime, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (p *PostgresStore) BookingsByStudent(ctx context.Context, studentPK int64) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, student_id, source, destination, pickup_time, status, bus_id, created_at, updated_at
		 FROM bookings WHERE student_id=$1
		 ORDER BY created_at DESC, id DESC`, studentPK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		var busID sql.NullInt64
		if err := rows.Scan(&b.ID, &b.StudentID, &b.Source, &b.Destination, &b.PickupTime, &b.Status, &busID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if busID.Valid {
			b.BusID = &busID.Int64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PendingBookings orders by pickup time, soonest first: dispatch
// urgency, not creation order.
func (p *PostgresStore) PendingBookings(ctx context.Context) ([]models.PendingBooking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT b.id, s.student_id, b.source, b.destination, b.pickup_time, b.created_at
		 FROM bookings b JOIN students s ON s.id = b.student_id
		 WHERE b.status = 'pending'
		 ORDER BY b.pickup_time ASC, b.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PendingBooking
	for rows.Next() {
		var b models.PendingBooking
		if err := rows.Scan(&b.BookingID, &b.StudentID, &b.Source, &b.Destination, &b.PickupTime, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
