package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/suchiii29/campushub/internal/models"
)

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "backend is connected successfully",
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProtectedTest(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "you are authenticated",
		"user":      id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type registerStudentRequest struct {
	StudentID string `json:"student_id"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req registerStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.StudentID) == "" || strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Address) == "" {
		respondError(w, http.StatusBadRequest, "missing required fields: student_id, phone, address")
		return
	}

	id := identityFromContext(r.Context())
	student := &models.Student{
		Subject:   id.Subject,
		StudentID: strings.TrimSpace(req.StudentID),
		Email:     id.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
	}
	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			respondError(w, http.StatusBadRequest, "student already registered")
			return
		}
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "student registered successfully",
		"student": map[string]any{
			"student_id": student.StudentID,
			"phone":      student.Phone,
		},
	})
}

type createBookingRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	PickupTime  string `json:"pickup_time"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := identityFromContext(r.Context())
	b, err := s.bookings.Create(r.Context(), id.Subject, req.Source, req.Destination, req.PickupTime)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotRegistered):
			respondError(w, http.StatusForbidden, "user is not registered as a student")
		case errors.Is(err, models.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, inputErrorMessage(err))
		default:
			s.internalError(w, r, err)
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "booking created successfully",
		"booking": b,
	})
}

func (s *Server) handleStudentBookings(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	list, err := s.bookings.ListForStudent(r.Context(), id.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotRegistered) {
			respondError(w, http.StatusForbidden, "user is not registered as a student")
			return
		}
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"bookings": list, "count": len(list)})
}

type locationUpdateRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Speed float64  `json:"speed"`
}

func (s *Server) handleDriverLocationUpdate(w http.ResponseWriter, r *http.Request) {
	var req locationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondError(w, http.StatusBadRequest, "missing latitude or longitude")
		return
	}

	id := identityFromContext(r.Context())
	report, err := s.tracker.ReportLocation(r.Context(), id.Subject, *req.Lat, *req.Lng, req.Speed)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotRegistered):
			respondError(w, http.StatusForbidden, "user is not registered as a driver")
		case errors.Is(err, models.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, inputErrorMessage(err))
		default:
			s.internalError(w, r, err)
		}
		return
	}

	if !report.BusAssigned {
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "driver location updated (no bus assigned)",
			"data": map[string]any{
				"latitude":  report.Latitude,
				"longitude": report.Longitude,
			},
		})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "location updated successfully",
		"data": map[string]any{
			"bus_number": report.BusNumber,
			"latitude":   report.Latitude,
			"longitude":  report.Longitude,
			"speed":      report.Speed,
			"timestamp":  report.RecordedAt.Format(time.RFC3339Nano),
		},
	})
}

type publicLocationRequest struct {
	DriverID string   `json:"driverId"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

// handleDriverLocationPublic is an unauthenticated echo used by device
// integration tests. It never persists anything.
func (s *Server) handleDriverLocationPublic(w http.ResponseWriter, r *http.Request) {
	var req publicLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "location received successfully",
		"data": map[string]any{
			"driverId":  req.DriverID,
			"latitude":  req.Lat,
			"longitude": req.Lng,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleBusLocations(w http.ResponseWriter, r *http.Request) {
	buses, err := s.tracker.ListActiveBusLocations(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if buses == nil {
		buses = []models.BusPosition{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"buses":     buses,
		"count":     len(buses),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBusHistory(w http.ResponseWriter, r *http.Request) {
	busNumber := mux.Vars(r)["bus_number"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := s.tracker.BusHistory(r.Context(), busNumber, limit)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusNotFound, "bus not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	if history == nil {
		history = []models.BusLocation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bus_number": busNumber,
		"locations":  history,
		"count":      len(history),
	})
}

func (s *Server) handlePendingBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.ListPending(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []models.PendingBooking{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"bookings": list, "count": len(list)})
}

func (s *Server) handleNearbyBuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		respondError(w, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}
	radius := 0.0
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			respondError(w, http.StatusBadRequest, "radius must be a positive number of meters")
			return
		}
		radius = f
	}

	buses, err := s.tracker.NearbyBuses(r.Context(), lat, lng, radius, 0)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, inputErrorMessage(err))
			return
		}
		s.internalError(w, r, err)
		return
	}
	if buses == nil {
		buses = []models.BusPosition{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"buses": buses, "count": len(buses)})
}

var upgrader = websocket.Upgrader{
	// CORS for the API is handled at the router; the tracking stream is
	// open to the map views.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleTrackWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response
	}
	sess := s.hub.Add(conn)
	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		defer s.hub.Remove(sess)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// inputErrorMessage exposes validation detail without leaking wrapped
// internals beyond the sentinel's message chain.
func inputErrorMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return models.ErrInvalidInput.Error()
	}
	return msg
}
