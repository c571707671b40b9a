package httpapi

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestHandlers_NotProvisionedCaller_401(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	rec := api.do(t, http.MethodGet, "/crews", "sub-ghost", nil)
	requireError(t, rec, http.StatusUnauthorized, "TRAVELER_NOT_PROVISIONED")
}

func TestHandlers_CreateCrew_ValidationDetails(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.hydrate(t, "sub-1", "one@example.com", "One Person")

	rec := api.do(t, http.MethodPost, "/crews", "sub-1", map[string]any{"name": ""})
	er := requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, err := er.Error.Details.Get()
	if err != nil {
		t.Fatalf("expected details: %v", err)
	}
	if _, ok := details["name"]; !ok {
		t.Fatalf("details missing name: %v", details)
	}
}

func TestHandlers_CreateCrew_IdempotencyKey(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.hydrate(t, "sub-1", "one@example.com", "One Person")
	key := withHeader("Idempotency-Key", "key-123")

	first := api.do(t, http.MethodPost, "/crews", "sub-1", map[string]any{"name": "Ski Weekend"}, key)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status=%d body=%s", first.Code, first.Body.String())
	}

	second := api.do(t, http.MethodPost, "/crews", "sub-1", map[string]any{"name": "Ski Weekend"}, key)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: status=%d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	a, b := decode[createCrewResponse](t, first), decode[createCrewResponse](t, second)
	if a.Crew.ID != b.Crew.ID || a.JoinCode != b.JoinCode {
		t.Fatalf("replay mismatch: %+v vs %+v", a, b)
	}

	rec := api.do(t, http.MethodGet, "/crews", "sub-1", nil)
	list := decode[listCrewsResponse](t, rec)
	if len(list.Crews) != 1 {
		t.Fatalf("crews=%d want 1 after replay", len(list.Crews))
	}

	rec = api.do(t, http.MethodPost, "/crews", "sub-1", map[string]any{"name": "Different"}, key)
	requireError(t, rec, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")
}

func TestHandlers_CrewMembersAndAuthorization(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.hydrate(t, "sub-admin", "admin@example.com", "Ada Admin")
	memberID := api.hydrate(t, "sub-member", "member@example.com", "Max Member")
	api.hydrate(t, "sub-outsider", "out@example.com", "Olly Outsider")

	created := api.createCrew(t, "sub-admin", "Family Reunion")
	crewPath := "/crews/" + created.Crew.ID

	rec := api.do(t, http.MethodGet, crewPath, "sub-outsider", nil)
	requireError(t, rec, http.StatusNotFound, "CREW_NOT_FOUND")

	rec = api.do(t, http.MethodPost, crewPath+"/members", "sub-admin", map[string]any{"email": "member@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, crewPath+"/members", "sub-admin", map[string]any{"email": "member@example.com"})
	requireError(t, rec, http.StatusConflict, "ALREADY_MEMBER")

	rec = api.do(t, http.MethodPost, crewPath+"/members", "sub-member", map[string]any{"email": "out@example.com"})
	requireError(t, rec, http.StatusForbidden, "NOT_AUTHORIZED")

	rec = api.do(t, http.MethodGet, crewPath, "sub-member", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get crew: status=%d body=%s", rec.Code, rec.Body.String())
	}
	details := decode[crewDetailsResponse](t, rec)
	if len(details.Members) != 2 {
		t.Fatalf("members=%d want 2", len(details.Members))
	}
	found := false
	for _, m := range details.Members {
		if m.TravelerID == memberID {
			found = true
			if len(m.Roles) != 1 || m.Roles[0] != "member" {
				t.Fatalf("member roles=%v", m.Roles)
			}
		}
	}
	if !found {
		t.Fatalf("member %s not listed", memberID)
	}
}

func TestHandlers_InviteLifecycle(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.hydrate(t, "sub-admin", "admin@example.com", "Ada Admin")
	api.hydrate(t, "sub-guest", "guest@example.com", "Gus Guest")
	created := api.createCrew(t, "sub-admin", "Road Trip")
	invitesPath := "/crews/" + created.Crew.ID + "/invites"

	rec := api.do(t, http.MethodGet, "/crews/"+created.Crew.ID+"/invite", "sub-admin", nil)
	link := decode[inviteLinkResponse](t, rec)
	if link.Handle == nil || link.URL != testBaseURL+"/join/"+*link.Handle {
		t.Fatalf("invite link=%+v", link)
	}

	expires := api.clk.Now().Add(48 * time.Hour).Format(time.RFC3339)
	rec = api.do(t, http.MethodPost, invitesPath, "sub-admin", map[string]any{"expiresAt": expires})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: status=%d body=%s", rec.Code, rec.Body.String())
	}
	issued := decode[struct {
		Invite inviteDTO `json:"invite"`
	}](t, rec).Invite
	if issued.ExpiresAt == nil || !issued.IsActive {
		t.Fatalf("issued=%+v", issued)
	}

	rec = api.do(t, http.MethodPost, invitesPath, "sub-guest", nil)
	requireError(t, rec, http.StatusNotFound, "CREW_NOT_FOUND")

	rec = api.do(t, http.MethodGet, invitesPath, "sub-admin", nil)
	list := decode[listInvitesResponse](t, rec)
	if len(list.Invites) != 2 {
		t.Fatalf("invites=%d want 2", len(list.Invites))
	}

	rec = api.do(t, http.MethodGet, "/join?code="+strings.ToLower(issued.Code), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy-shape preview: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodDelete, invitesPath+"/"+issued.Code, "sub-admin", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status=%d body=%s", rec.Code, rec.Body.String())
	}

	inactive := api.do(t, http.MethodGet, "/join/"+issued.Code, "", nil)
	missing := api.do(t, http.MethodGet, "/join/ZZZZZZ", "", nil)
	a := requireError(t, inactive, http.StatusNotFound, "INVITE_INVALID")
	b := requireError(t, missing, http.StatusNotFound, "INVITE_INVALID")
	if a.Error.Message != b.Error.Message {
		t.Fatalf("inactive and missing invites must look identical: %q vs %q", a.Error.Message, b.Error.Message)
	}

	rec = api.do(t, http.MethodPost, "/join", "sub-guest", map[string]any{"code": created.JoinCode})
	if rec.Code != http.StatusOK {
		t.Fatalf("join by code: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[joinResponse](t, rec).TripCrewID; got != created.Crew.ID {
		t.Fatalf("tripCrewId=%q want %q", got, created.Crew.ID)
	}
}

func TestHandlers_Trips(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.hydrate(t, "sub-1", "one@example.com", "One Person")
	api.hydrate(t, "sub-2", "two@example.com", "Two Person")
	created := api.createCrew(t, "sub-1", "Racers")

	rec := api.do(t, http.MethodPost, "/crews/"+created.Crew.ID+"/trips", "sub-1", map[string]any{
		"name":        "Marathon",
		"purpose":     "RACE",
		"destination": "Boston",
		"startDate":   "2025-04-19",
		"endDate":     "2025-04-22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create trip: status=%d body=%s", rec.Code, rec.Body.String())
	}
	trip := decode[struct {
		Trip tripDTO `json:"trip"`
	}](t, rec).Trip
	if trip.Season == nil || *trip.Season != "Spring" || trip.DaysTotal == nil || *trip.DaysTotal != 4 {
		t.Fatalf("metadata: %+v", trip)
	}
	if trip.StartDate == nil || trip.StartDate.String() != "2025-04-19" {
		t.Fatalf("startDate: %v", trip.StartDate)
	}

	rec = api.do(t, http.MethodPatch, "/trips/"+trip.ID, "sub-1", `{"destination":null,"endDate":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status=%d body=%s", rec.Code, rec.Body.String())
	}
	patched := decode[struct {
		Trip tripDTO `json:"trip"`
	}](t, rec).Trip
	if patched.Destination != nil || patched.EndDate != nil || patched.Season != nil {
		t.Fatalf("patched: %+v", patched)
	}

	rec = api.do(t, http.MethodGet, "/trips/"+trip.ID, "sub-2", nil)
	requireError(t, rec, http.StatusNotFound, "TRIP_NOT_FOUND")

	rec = api.do(t, http.MethodPost, "/crews/"+created.Crew.ID+"/trips", "sub-1", map[string]any{"name": "Bad", "purpose": "PARTY"})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = api.do(t, http.MethodGet, "/join/"+*created.Crew.Handle, "", nil)
	if got := decode[crewPreviewResponse](t, rec); got.TripCount != 1 {
		t.Fatalf("preview tripCount=%d want 1", got.TripCount)
	}
}

func TestHandlers_PublicInviteRateLimit(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{ratePerMi: 1, rateBurst: 2})
	for i := 0; i < 2; i++ {
		rec := api.do(t, http.MethodGet, "/join/ABCDEF", "", nil)
		requireError(t, rec, http.StatusNotFound, "INVITE_INVALID")
	}
	rec := api.do(t, http.MethodGet, "/join/ABCDEF", "", nil)
	requireError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestHandlers_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, apiOptions{})
	api.do(t, http.MethodGet, "/join/ABCDEF", "", nil)

	rec := api.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"crewplanner_http_request_duration_seconds",
		`route="/join/{slugOrCode}"`,
		"crewplanner_invites_resolutions_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
