// Package handler implements the HTTP handlers for the trip agenda API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, agenda.go) but share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/incentive-trips/backend/internal/domain"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the store or service layer.
type TripServicer interface {
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	List(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.Trip], error)
	Update(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteDay(ctx context.Context, id uuid.UUID, day int) (domain.Trip, error)
	DeleteItem(ctx context.Context, id uuid.UUID, day int, itemID domain.ItemID) (domain.Trip, error)
	ListBackups(ctx context.Context, id uuid.UUID) ([]domain.Backup, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	trips TripServicer
	log   *slog.Logger
	debug bool // expose error details and stacks in 500 bodies
}

// NewServer constructs the Server. debug should only be true outside
// production.
func NewServer(trips TripServicer, log *slog.Logger, debug bool) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{trips: trips, log: log, debug: debug}
}

// Routes returns the API router. Cross-cutting middleware (request ids,
// logging, CORS, body limits) is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Post("/", s.CreateTrip)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Patch("/", s.UpdateTrip)
			r.Put("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)
			r.Get("/backups", s.ListBackups)
			r.Delete("/agenda/days/{day}", s.DeleteDay)
			r.Delete("/agenda/days/{day}/items/{itemId}", s.DeleteItem)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method_not_allowed", "method not allowed"))
	})
	return r
}
