package itest

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

type crewPreview struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	TripCount   int    `json:"tripCount"`
	Admin       *struct {
		TravelerID string  `json:"travelerId"`
		FirstName  *string `json:"firstName"`
	} `json:"admin"`
}

func TestBeachTripInviteFlow(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)

			t1 := s.hydrate(t, "sub-t1", "tess@example.com", "Tess Organizer")
			t2 := s.hydrate(t, "sub-t2", "sam@example.com", "Sam Friend")

			status, body, _ := s.doJSON(t, http.MethodPost, "/crews", "sub-t1", map[string]any{"name": "Beach Trip 2025"})
			requireStatus(t, status, body, http.StatusCreated)
			created := mustUnmarshal[struct {
				Crew struct {
					ID     string  `json:"id"`
					Handle *string `json:"handle"`
				} `json:"crew"`
				JoinCode  string `json:"joinCode"`
				InviteURL string `json:"inviteUrl"`
			}](t, body)
			if created.Crew.Handle == nil || *created.Crew.Handle != "beach-trip-2025" {
				t.Fatalf("handle=%v want beach-trip-2025", created.Crew.Handle)
			}
			if created.InviteURL != publicBaseURL+"/join/beach-trip-2025" {
				t.Fatalf("inviteUrl=%q", created.InviteURL)
			}
			if len(created.JoinCode) != 6 || strings.ToUpper(created.JoinCode) != created.JoinCode {
				t.Fatalf("joinCode=%q", created.JoinCode)
			}

			// Anyone holding the link can preview without signing in.
			status, body, _ = s.doJSON(t, http.MethodGet, "/join/beach-trip-2025", "", nil)
			requireStatus(t, status, body, http.StatusOK)
			p := mustUnmarshal[crewPreview](t, body)
			if p.ID != created.Crew.ID || p.MemberCount != 1 || p.TripCount != 0 {
				t.Fatalf("preview=%+v", p)
			}
			if p.Admin == nil || p.Admin.TravelerID != t1 {
				t.Fatalf("admin=%+v want %s", p.Admin, t1)
			}

			status, body, _ = s.doJSON(t, http.MethodPost, "/join/beach-trip-2025", "sub-t2", nil)
			requireStatus(t, status, body, http.StatusOK)
			joined := mustUnmarshal[struct {
				TripCrewID string `json:"tripCrewId"`
			}](t, body)
			if joined.TripCrewID != created.Crew.ID {
				t.Fatalf("tripCrewId=%q want %q", joined.TripCrewID, created.Crew.ID)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/join/"+created.JoinCode, "", nil)
			requireStatus(t, status, body, http.StatusOK)
			if p := mustUnmarshal[crewPreview](t, body); p.MemberCount != 2 {
				t.Fatalf("memberCount=%d want 2", p.MemberCount)
			}

			status, body, _ = s.doJSON(t, http.MethodPost, "/join/"+created.JoinCode, "sub-t2", nil)
			requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_MEMBER")

			// Links shared before path-based invites still resolve.
			q := url.Values{"code": {strings.ToLower(created.JoinCode)}}
			status, body, _ = s.doJSON(t, http.MethodGet, "/join?"+q.Encode(), "", nil)
			requireStatus(t, status, body, http.StatusOK)

			status, body, _ = s.doJSON(t, http.MethodGet, "/crews", "sub-t2", nil)
			requireStatus(t, status, body, http.StatusOK)
			list := mustUnmarshal[struct {
				Crews []struct {
					ID string `json:"id"`
				} `json:"crews"`
			}](t, body)
			if len(list.Crews) != 1 || list.Crews[0].ID != created.Crew.ID {
				t.Fatalf("crews for t2=%+v", list.Crews)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/crews/"+created.Crew.ID, "sub-t2", nil)
			requireStatus(t, status, body, http.StatusOK)
			details := mustUnmarshal[struct {
				Members []struct {
					TravelerID string   `json:"travelerId"`
					Roles      []string `json:"roles"`
				} `json:"members"`
			}](t, body)
			roles := map[string][]string{}
			for _, m := range details.Members {
				roles[m.TravelerID] = m.Roles
			}
			if len(roles[t1]) != 1 || roles[t1][0] != "admin" || len(roles[t2]) != 1 || roles[t2][0] != "member" {
				t.Fatalf("roles=%v", roles)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/join/no-such-crew", "", nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "INVITE_INVALID")
		})
	}
}

func TestAuthRequiredForJoin(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)
			status, body, _ := s.doJSON(t, http.MethodPost, "/join/anything", "", nil)
			requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
			if got := mustUnmarshal[errorResponse](t, body); got.Error.RequestID == "" {
				t.Fatalf("expected requestId in error body")
			}
		})
	}
}
