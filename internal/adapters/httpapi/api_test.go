package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	memclock "github.com/tripwell/crew-planner-api/internal/adapters/memory/clock"
	memcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/crewrepo"
	memidempotency "github.com/tripwell/crew-planner-api/internal/adapters/memory/idempotency"
	mempreviewcache "github.com/tripwell/crew-planner-api/internal/adapters/memory/previewcache"
	memtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/travelerrepo"
	memtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/triprepo"
	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	"github.com/tripwell/crew-planner-api/internal/app/trips"
)

const testBaseURL = "https://trips.example.com"

type testAPI struct {
	handler  http.Handler
	clk      *memclock.ManualClock
	registry *prometheus.Registry
}

type apiOptions struct {
	auth      func(http.Handler) http.Handler
	ratePerMi int
	rateBurst int
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()

	travelerRepo := memtravelerrepo.NewRepo()
	crewRepo := memcrewrepo.NewRepo()
	tripRepo := memtriprepo.NewRepo()

	travelerSvc := travelers.NewService(travelerRepo, clk, "tenant-test", nil)
	crewSvc := crews.NewService(crewRepo, travelerRepo, tripRepo, clk, crews.Options{
		BaseURL: testBaseURL,
		Metrics: crews.NewMetrics(reg),
		Cache:   mempreviewcache.New(clk, time.Minute),
	})
	tripSvc := trips.NewService(tripRepo, crewSvc, clk, nil)

	auth := opts.auth
	if auth == nil {
		auth = NewDevAuthMiddleware("")
	}
	api := NewServer(travelerSvc, crewSvc, tripSvc, memidempotency.NewStore(), clk, nil)
	h := NewRouterWithOptions(api, RouterOptions{
		AuthMiddleware:      auth,
		Registry:            reg,
		InviteRatePerMinute: opts.ratePerMi,
		InviteRateBurst:     opts.rateBurst,
	})
	return &testAPI{handler: h, clk: clk, registry: reg}
}

type reqOpt func(*http.Request)

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (a *testAPI) do(t *testing.T, method, path, subject string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// hydrate signs subject in with the given profile and returns the traveler id.
func (a *testAPI) hydrate(t *testing.T, subject, email, name string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/travelers/me", subject, map[string]any{"email": email, "displayName": name})
	if rec.Code != http.StatusOK {
		t.Fatalf("hydrate %s: status=%d body=%s", subject, rec.Code, rec.Body.String())
	}
	out := decode[struct {
		Traveler travelerDTO `json:"traveler"`
	}](t, rec)
	return out.Traveler.ID
}

func (a *testAPI) createCrew(t *testing.T, subject, name string) createCrewResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/crews", subject, map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create crew: status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[createCrewResponse](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v\nbody=%s", err, rec.Body.String())
	}
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) errorResponse {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, wantStatus, rec.Body.String())
	}
	er := decode[errorResponse](t, rec)
	if er.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", er.Error.Code, wantCode, rec.Body.String())
	}
	return er
}
