package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

func crewIDParam(r *http.Request) domain.CrewID {
	return domain.CrewID(chi.URLParam(r, "crewId"))
}

func (s *Server) createCrew(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req createCrewRequest
	if !s.bind(w, r, body, &req, false) {
		return
	}

	bodyHash, err := hashBody(req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	sub, _ := SubjectFromContext(r.Context())
	fp := idempotencyFingerprint(r, sub, "/crews", bodyHash)
	rec, outcome, err := s.checkReplay(r.Context(), fp)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	switch outcome {
	case replayConflict:
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return
	case replayHit:
		writeReplay(w, rec)
		return
	}

	created, err := s.Crews.CreateCrew(r.Context(), me, crews.CreateCrewInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	resp := createCrewResponse{
		Crew:      crewFromDomain(created.Crew),
		JoinCode:  created.JoinCode,
		InviteURL: created.InviteURL,
	}
	s.storeReplay(r.Context(), fp, http.StatusCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) listMyCrews(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	cs, err := s.Crews.ListMyCrews(r.Context(), me)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]crewSummaryDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, crewSummaryDTO{
			crewDTO:     crewFromDomain(c.Crew),
			MemberCount: c.MemberCount,
			TripCount:   c.TripCount,
		})
	}
	writeJSON(w, http.StatusOK, listCrewsResponse{Crews: out})
}

func (s *Server) getCrew(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	d, err := s.Crews.GetCrew(r.Context(), me, crewIDParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	members := make([]crewMemberDTO, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, crewMemberFromDomain(m))
	}
	writeJSON(w, http.StatusOK, crewDetailsResponse{
		Crew:      crewFromDomain(d.Crew),
		Members:   members,
		TripCount: d.TripCount,
	})
}

func (s *Server) addCrewMember(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	m, err := s.Crews.AddMemberByEmail(r.Context(), me, crewIDParam(r), string(req.Email))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]crewMemberDTO{"member": crewMemberFromDomain(m)})
}
