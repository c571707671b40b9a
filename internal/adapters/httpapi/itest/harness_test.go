package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tripwell/crew-planner-api/internal/adapters/httpapi"
	memclock "github.com/tripwell/crew-planner-api/internal/adapters/memory/clock"
	memcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/crewrepo"
	memidempotency "github.com/tripwell/crew-planner-api/internal/adapters/memory/idempotency"
	memtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/travelerrepo"
	memtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/triprepo"
	pgcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/crewrepo"
	pgidempotency "github.com/tripwell/crew-planner-api/internal/adapters/postgres/idempotency"
	postgres_testutil "github.com/tripwell/crew-planner-api/internal/adapters/postgres/testutil"
	pgtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/travelerrepo"
	pgtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/triprepo"
	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	"github.com/tripwell/crew-planner-api/internal/app/trips"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	idempotencyport "github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
	travelerrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	triprepoport "github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

const publicBaseURL = "https://plan.example.com"

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = "itest-issuer"
	clk := memclock.NewManualClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))

	var (
		travelerRepo travelerrepoport.Repository
		crewRepo     crewrepoport.Repository
		tripRepo     triprepoport.Repository
		idemStore    idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		travelerRepo = pgtravelerrepo.NewRepo(pool, issuer)
		crewRepo = pgcrewrepo.NewRepo(pool)
		tripRepo = pgtriprepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendMemory:
		travelerRepo = memtravelerrepo.NewRepo()
		crewRepo = memcrewrepo.NewRepo()
		tripRepo = memtriprepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	travelerSvc := travelers.NewService(travelerRepo, clk, "itest-tenant", nil)
	crewSvc := crews.NewService(crewRepo, travelerRepo, tripRepo, clk, crews.Options{BaseURL: publicBaseURL})
	tripSvc := trips.NewService(tripRepo, crewSvc, clk, nil)
	api := httpapi.NewServer(travelerSvc, crewSvc, tripSvc, idemStore, clk, nil)

	// An empty default subject forces every authenticated request to carry X-Debug-Subject.
	authMW := httpapi.NewDevAuthMiddleware("")
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

func (s *testServer) hydrate(t *testing.T, subject, email, name string) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/travelers/me", subject, map[string]any{"email": email, "displayName": name})
	requireStatus(t, status, body, http.StatusOK)
	out := mustUnmarshal[struct {
		Traveler struct {
			ID string `json:"id"`
		} `json:"traveler"`
	}](t, body)
	return out.Traveler.ID
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}
