package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/tripwell/crew-planner-api/internal/app/trips"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

func tripIDParam(r *http.Request) domain.TripID {
	return domain.TripID(chi.URLParam(r, "tripId"))
}

func (s *Server) createTrip(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createTripRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	in := trips.CreateTripInput{
		Name:        req.Name,
		Destination: req.Destination,
	}
	if req.Purpose != nil {
		in.Purpose = domain.TripPurpose(*req.Purpose)
	}
	if req.StartDate != nil {
		in.StartDate = &req.StartDate.Time
	}
	if req.EndDate != nil {
		in.EndDate = &req.EndDate.Time
	}

	t, err := s.Trips.CreateTrip(r.Context(), me, crewIDParam(r), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]tripDTO{"trip": tripFromDomain(t)})
}

func (s *Server) listCrewTrips(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	ts, err := s.Trips.ListCrewTrips(r.Context(), me, crewIDParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]tripDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, tripFromDomain(t))
	}
	writeJSON(w, http.StatusOK, listTripsResponse{Trips: out})
}

func (s *Server) getTrip(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	t, err := s.Trips.GetTrip(r.Context(), me, tripIDParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]tripDTO{"trip": tripFromDomain(t)})
}

func (s *Server) updateTrip(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateTripRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	t, err := s.Trips.UpdateTrip(r.Context(), me, tripIDParam(r), updateTripInputFromRequest(req))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]tripDTO{"trip": tripFromDomain(t)})
}

func updateTripInputFromRequest(req updateTripRequest) trips.UpdateTripInput {
	in := trips.UpdateTripInput{
		Destination: optionalFromNullable(req.Destination),
		StartDate:   optionalDate(req.StartDate),
		EndDate:     optionalDate(req.EndDate),
	}
	if req.Name != nil {
		in.Name = trips.Some(*req.Name)
	}
	if req.Purpose != nil {
		in.Purpose = trips.Some(domain.TripPurpose(*req.Purpose))
	}
	return in
}

func optionalFromNullable[T any](n nullable.Nullable[T]) trips.Optional[T] {
	if !n.IsSpecified() {
		return trips.Unspecified[T]()
	}
	if n.IsNull() {
		return trips.Null[T]()
	}
	v, _ := n.Get()
	return trips.Some(v)
}

func optionalDate(n nullable.Nullable[openapi_types.Date]) trips.Optional[time.Time] {
	d := optionalFromNullable(n)
	switch {
	case !d.IsSpecified():
		return trips.Unspecified[time.Time]()
	case d.IsNull():
		return trips.Null[time.Time]()
	}
	return trips.Some(d.Value().Time)
}
