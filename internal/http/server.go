package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suchiii29/campushub/internal/auth"
	"github.com/suchiii29/campushub/internal/booking"
	"github.com/suchiii29/campushub/internal/dispatch"
	"github.com/suchiii29/campushub/internal/storage"
	"github.com/suchiii29/campushub/internal/tracking"
)

// Server is the HTTP surface of the transit backend. Collaborators are
// injected; nothing here reaches for process-wide state.
type Server struct {
	store    storage.Store
	verifier auth.Verifier
	tracker  *tracking.Service
	bookings *booking.Service
	hub      *dispatch.Hub
	logger   *slog.Logger

	allowedOrigins []string
	mux            *mux.Router
	handler        http.Handler
}

type Deps struct {
	Store          storage.Store
	Verifier       auth.Verifier
	Tracker        *tracking.Service
	Bookings       *booking.Service
	Hub            *dispatch.Hub
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:          d.Store,
		verifier:       d.Verifier,
		tracker:        d.Tracker,
		bookings:       d.Bookings,
		hub:            d.Hub,
		logger:         d.Logger,
		allowedOrigins: d.AllowedOrigins,
		mux:            mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	s.handler = cors(s.mux)
	return s
}

func (s *Server) routes() {
	// test endpoints
	s.mux.HandleFunc("/test/", s.handleTest).Methods("GET")
	s.mux.HandleFunc("/protected-test/", s.requireAuth(s.handleProtectedTest)).Methods("GET")

	// student endpoints
	s.mux.HandleFunc("/student/register/", s.requireAuth(s.handleRegisterStudent)).Methods("POST")
	s.mux.HandleFunc("/student/booking/create/", s.requireAuth(s.handleCreateBooking)).Methods("POST")
	s.mux.HandleFunc("/student/bookings/", s.requireAuth(s.handleStudentBookings)).Methods("GET")

	// driver endpoints
	s.mux.HandleFunc("/driver/location/update/", s.requireAuth(s.handleDriverLocationUpdate)).Methods("POST")
	s.mux.HandleFunc("/driver/location/", s.handleDriverLocationPublic).Methods("POST") // testing only, no auth

	// admin endpoints
	s.mux.HandleFunc("/admin/buses/locations/", s.handleBusLocations).Methods("GET")
	s.mux.HandleFunc("/admin/buses/{bus_number}/history/", s.handleBusHistory).Methods("GET")
	s.mux.HandleFunc("/admin/bookings/pending/", s.handlePendingBookings).Methods("GET")

	// live tracking + proximity
	s.mux.HandleFunc("/ws/track", s.handleTrackWS)
	s.mux.HandleFunc("/buses/nearby/", s.handleNearbyBuses).Methods("GET")

	// operational
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }
