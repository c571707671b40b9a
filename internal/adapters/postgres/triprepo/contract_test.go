package triprepo

import (
	"testing"

	"github.com/tripwell/crew-planner-api/internal/adapters/contracttest"
	"github.com/tripwell/crew-planner-api/internal/adapters/postgres/crewrepo"
	"github.com/tripwell/crew-planner-api/internal/adapters/postgres/testutil"
	"github.com/tripwell/crew-planner-api/internal/adapters/postgres/travelerrepo"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	travelerrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	triprepoport "github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

func TestContract_PostgresTripRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	issuer := "https://issuer.test"

	contracttest.RunTripRepo(
		t,
		func(t *testing.T) (travelerrepoport.Repository, func()) {
			t.Helper()
			return travelerrepo.NewRepo(pool, issuer), nil
		},
		func(t *testing.T) (crewrepoport.Repository, func()) {
			t.Helper()
			return crewrepo.NewRepo(pool), nil
		},
		func(t *testing.T) (triprepoport.Repository, func()) {
			t.Helper()
			return NewRepo(pool), nil
		},
	)
}
