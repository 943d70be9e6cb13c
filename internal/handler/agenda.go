package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/incentive-trips/backend/internal/domain"
)

// DeleteDay handles DELETE /trips/{id}/agenda/days/{day}.
// This is the only way to remove a day; the update endpoint never drops one.
func (s *Server) DeleteDay(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	day, ok := dayNumber(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.DeleteDay(r.Context(), id, day)
	if err != nil {
		s.writeError(w, r, err, "trip or day not found")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteItem handles DELETE /trips/{id}/agenda/days/{day}/items/{itemId}.
// Numeric ids in the path match items stored with numeric ids.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	day, ok := dayNumber(w, r)
	if !ok {
		return
	}
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "itemId", chi.URLParam(r, "itemId"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid item id"))
		return
	}

	trip, err := s.trips.DeleteItem(r.Context(), id, day, domain.ParseItemID(raw))
	if err != nil {
		s.writeError(w, r, err, "trip, day or item not found")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func dayNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	var day int
	err := runtime.BindStyledParameterWithOptions("simple", "day", chi.URLParam(r, "day"), &day,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || day < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "day must be a positive integer"))
		return 0, false
	}
	return day, true
}
