package httpapi

import (
	"net/http"

	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

// hydrateMe creates or refreshes the caller's traveler. Body fields win over token claims.
func (s *Server) hydrateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return
	}
	var req hydrateTravelerRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	in := travelers.HydrateInput{
		Email:       id.Email,
		DisplayName: id.Name,
		PhotoURL:    id.Picture,
	}
	if req.Email != nil {
		in.Email = string(*req.Email)
	}
	if req.DisplayName != nil {
		in.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		in.PhotoURL = *req.PhotoURL
	}

	t, err := s.Travelers.Hydrate(r.Context(), domain.SubjectID(id.Subject), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]travelerDTO{"traveler": travelerFromDomain(t)})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return
	}
	t, err := s.Travelers.GetMe(r.Context(), domain.SubjectID(sub))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]travelerDTO{"traveler": travelerFromDomain(t)})
}
