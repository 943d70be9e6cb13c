package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/incentive-trips/backend/internal/domain"
)

// CreateTripRequest is the body of POST /trips.
type CreateTripRequest struct {
	Name        string       `json:"name"`
	Destination string       `json:"destination"`
	StartDate   string       `json:"startDate"`
	EndDate     string       `json:"endDate"`
	Description string       `json:"description"`
	CoverImage  string       `json:"coverImage"`
	Agenda      []domain.Day `json:"agenda"`
}

// Pagination is the paging envelope of list responses.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []domain.Trip `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// ListTrips handles GET /trips?page=&limit=.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	var page, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid page parameter"))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid limit parameter"))
		return
	}
	p := domain.NewPaginationParams(page, limit)

	result, err := s.trips.List(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	// Data must serialize as [] rather than null when there are no trips.
	data := result.Items
	if data == nil {
		data = []domain.Trip{}
	}
	writeJSON(w, http.StatusOK, TripList{
		Data:       data,
		Pagination: Pagination{Page: p.Page, Limit: p.Limit, Total: result.Total},
	})
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body CreateTripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}

	trip, err := s.trips.Create(r.Context(), domain.Trip{
		Name:        body.Name,
		Destination: body.Destination,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Description: body.Description,
		CoverImage:  body.CoverImage,
		Agenda:      body.Agenda,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	trip, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// UpdateTrip handles PATCH and PUT /trips/{id}. Both are partial updates:
// fields absent from the body keep their stored values.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	var patch domain.TripPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeDecodeError(w, err)
		return
	}

	trip, err := s.trips.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	if err := s.trips.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBackups handles GET /trips/{id}/backups.
func (s *Server) ListBackups(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	backups, err := s.trips.ListBackups(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	if backups == nil {
		backups = []domain.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// tripID binds the {id} path parameter. On failure it writes a 400 and
// reports false.
func tripID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid trip id"))
		return uuid.Nil, false
	}
	return id, true
}
