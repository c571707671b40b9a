package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tripwell/crew-planner-api/internal/app/crews"
)

// previewInvite serves both GET /join/{slugOrCode} and the legacy GET /join?code=CODE.
// It does not require authentication.
func (s *Server) previewInvite(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "slugOrCode")
	if value == "" {
		value = r.URL.Query().Get("code")
	}
	if strings.TrimSpace(value) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid code", map[string]any{"code": "must be non-empty"})
		return
	}
	p, err := s.Crews.ResolveInvite(r.Context(), value)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crewPreviewFromDomain(p))
}

// joinCrew serves POST /join/{slugOrCode} and POST /join with {"code": ...}.
func (s *Server) joinCrew(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	value := chi.URLParam(r, "slugOrCode")
	if value == "" {
		var req joinRequest
		if !s.decode(w, r, &req, false) {
			return
		}
		value = req.Code
	}

	joined, err := s.Crews.JoinCrew(r.Context(), value, me)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{TripCrewID: string(joined.CrewID)})
}

func (s *Server) getInviteLink(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	link, err := s.Crews.GetInviteLink(r.Context(), me, crewIDParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inviteLinkResponse{URL: link.URL, Handle: link.Handle, Code: link.Code})
}

func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	invs, err := s.Crews.ListInvites(r.Context(), me, crewIDParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]inviteDTO, 0, len(invs))
	for _, inv := range invs {
		out = append(out, inviteFromApp(inv))
	}
	writeJSON(w, http.StatusOK, listInvitesResponse{Invites: out})
}

func (s *Server) issueInvite(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req issueInviteRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	var in crews.IssueInviteInput
	if v, err := req.ExpiresAt.Get(); err == nil {
		in.ExpiresAt = &v
	}

	inv, err := s.Crews.IssueInvite(r.Context(), me, crewIDParam(r), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]inviteDTO{"invite": inviteFromApp(inv)})
}

func (s *Server) deactivateInvite(w http.ResponseWriter, r *http.Request) {
	me, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Crews.DeactivateInvite(r.Context(), me, crewIDParam(r), chi.URLParam(r, "code")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
