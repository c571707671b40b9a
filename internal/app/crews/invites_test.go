package crews

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
)

func TestService_BeachTripScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	t2 := f.traveler(t, "t2", "Rui", "Costa", "")

	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)
	require.Equal(t, testBaseURL+"/join/beach-trip-2025", created.InviteURL)

	p, err := f.svc.ResolveInvite(ctx, domain.InviteValueFromURL(created.InviteURL))
	require.NoError(t, err)
	assert.Equal(t, created.Crew.ID, p.ID)
	assert.Equal(t, "Beach Trip 2025", p.Name)
	assert.Equal(t, 1, p.MemberCount)
	assert.Equal(t, 0, p.TripCount)
	require.NotNil(t, p.Admin)
	assert.Equal(t, t1, p.Admin.TravelerID)
	assert.Equal(t, "Tess", *p.Admin.FirstName)

	joined, err := f.svc.JoinCrew(ctx, "beach-trip-2025", t2)
	require.NoError(t, err)
	assert.Equal(t, created.Crew.ID, joined.CrewID)

	// The join invalidated the cached preview.
	p, err = f.svc.ResolveInvite(ctx, "beach-trip-2025")
	require.NoError(t, err)
	assert.Equal(t, 2, p.MemberCount)

	_, err = f.svc.JoinCrew(ctx, "beach-trip-2025", t2)
	requireAppError(t, err, 409, CodeAlreadyMember)

	n, err := f.crews.CountMembers(ctx, created.Crew.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_JoinCrew_ByCodeCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	t2 := f.traveler(t, "t2", "Rui", "Costa", "")

	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)

	// A lowercased code looks like a handle; the handle miss falls through to the registry.
	joined, err := f.svc.JoinCrew(ctx, " "+strings.ToLower(created.JoinCode)+" ", t2)
	require.NoError(t, err)
	assert.Equal(t, created.Crew.ID, joined.CrewID)
}

func TestService_ResolveInvite_InvalidCasesAreIndistinguishable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)

	past := f.clk.Now().Add(-time.Hour)
	require.NoError(t, f.crews.CreateJoinCode(ctx, crewrepo.JoinCode{Code: "EXPIRD", CrewID: created.Crew.ID, IsActive: true, ExpiresAt: &past, CreatedAt: past}))
	require.NoError(t, f.crews.CreateJoinCode(ctx, crewrepo.JoinCode{Code: "RETRED", CrewID: created.Crew.ID, IsActive: true, CreatedAt: past}))
	require.NoError(t, f.crews.DeactivateJoinCode(ctx, "RETRED", f.clk.Now()))

	var errs []*Error
	for _, v := range []string{"EXPIRD", "RETRED", "NOPE42", "no-such-crew", ""} {
		_, err := f.svc.ResolveInvite(ctx, v)
		errs = append(errs, requireAppError(t, err, 404, CodeInviteInvalid))
	}
	for _, e := range errs[1:] {
		assert.Equal(t, *errs[0], *e)
	}
	assert.Equal(t, "invalid or expired invite", errs[0].Message)

	_, err = f.svc.JoinCrew(ctx, "EXPIRD", "t2")
	requireAppError(t, err, 404, CodeInviteInvalid)
}

func TestService_ResolveInvite_ExpiryIsEvaluatedAtResolveTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)

	exp := f.clk.Now().Add(time.Hour)
	inv, err := f.svc.IssueInvite(ctx, t1, created.Crew.ID, IssueInviteInput{ExpiresAt: &exp})
	require.NoError(t, err)

	_, err = f.svc.ResolveInvite(ctx, inv.Code)
	require.NoError(t, err)

	// A cached preview must not keep an expired code alive.
	f.clk.Advance(time.Hour)
	_, err = f.svc.ResolveInvite(ctx, inv.Code)
	requireAppError(t, err, 404, CodeInviteInvalid)
}

func TestService_ResolveInvite_LegacySelfHeal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")

	legacy := "LGCY42"
	now := f.clk.Now()
	f.crews.SeedLegacyCrew(crewrepo.Crew{ID: "crew-legacy", Name: "Old Crew", LegacyJoinCode: &legacy, CreatedBy: t1, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, f.crews.AddMember(ctx, crewrepo.Membership{CrewID: "crew-legacy", TravelerID: t1, CreatedAt: now}))

	_, err := f.crews.GetJoinCode(ctx, legacy)
	require.ErrorIs(t, err, crewrepo.ErrNotFound)

	healed, err := f.svc.ResolveInvite(ctx, domain.InviteValueFromURL(domain.LegacyInviteURL(testBaseURL, "lgcy42")))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewID("crew-legacy"), healed.ID)

	jc, err := f.crews.GetJoinCode(ctx, legacy)
	require.NoError(t, err)
	assert.True(t, jc.IsActive)
	assert.Nil(t, jc.ExpiresAt)

	// With the row in place, resolution produces the same preview.
	require.NoError(t, f.cache.Invalidate(ctx, "crew-legacy"))
	again, err := f.svc.ResolveInvite(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, healed, again)

	// Link construction uses the code for crews without a handle.
	link, err := f.svc.GetInviteLink(ctx, t1, "crew-legacy")
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/join/LGCY42", link.URL)
	got, err := f.svc.ResolveInvite(ctx, domain.InviteValueFromURL(link.URL))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewID("crew-legacy"), got.ID)
}

func TestService_ResolveInvite_DeactivatedLegacyCodeStaysDead(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")

	legacy := "LGCY77"
	now := f.clk.Now()
	f.crews.SeedLegacyCrew(crewrepo.Crew{ID: "crew-legacy", Name: "Old Crew", LegacyJoinCode: &legacy, CreatedBy: t1, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, f.crews.AddMember(ctx, crewrepo.Membership{CrewID: "crew-legacy", TravelerID: t1, CreatedAt: now}))

	_, err := f.svc.ResolveInvite(ctx, legacy)
	require.NoError(t, err)
	require.NoError(t, f.crews.DeactivateJoinCode(ctx, legacy, now))

	_, err = f.svc.ResolveInvite(ctx, legacy)
	requireAppError(t, err, 404, CodeInviteInvalid)
}

func TestService_InviteLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	t2 := f.traveler(t, "t2", "Rui", "Costa", "")

	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)
	_, err = f.svc.JoinCrew(ctx, created.JoinCode, t2)
	require.NoError(t, err)

	_, err = f.svc.IssueInvite(ctx, t2, created.Crew.ID, IssueInviteInput{})
	requireAppError(t, err, 403, CodeNotAuthorized)
	_, err = f.svc.ListInvites(ctx, t2, created.Crew.ID)
	requireAppError(t, err, 403, CodeNotAuthorized)

	f.clk.Advance(time.Second)
	inv, err := f.svc.IssueInvite(ctx, t1, created.Crew.ID, IssueInviteInput{})
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/join/"+inv.Code, inv.URL)

	list, err := f.svc.ListInvites(ctx, t1, created.Crew.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, inv.Code, list[0].Code)
	assert.True(t, list[0].IsActive && list[1].IsActive, "issuing a code leaves older codes active")

	require.NoError(t, f.svc.DeactivateInvite(ctx, t1, created.Crew.ID, strings.ToLower(created.JoinCode)))
	_, err = f.svc.ResolveInvite(ctx, created.JoinCode)
	requireAppError(t, err, 404, CodeInviteInvalid)
	_, err = f.svc.ResolveInvite(ctx, inv.Code)
	require.NoError(t, err)

	err = f.svc.DeactivateInvite(ctx, t1, created.Crew.ID, "NOPE42")
	requireAppError(t, err, 404, CodeInviteInvalid)

	past := f.clk.Now().Add(-time.Minute)
	_, err = f.svc.IssueInvite(ctx, t1, created.Crew.ID, IssueInviteInput{ExpiresAt: &past})
	requireAppError(t, err, 422, CodeValidation)
}

func TestService_GetInviteLink_PrefersHandle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	created, err := f.svc.CreateCrew(ctx, t1, CreateCrewInput{Name: "Beach Trip 2025"})
	require.NoError(t, err)

	link, err := f.svc.GetInviteLink(ctx, t1, created.Crew.ID)
	require.NoError(t, err)
	assert.Equal(t, created.InviteURL, link.URL)
	require.NotNil(t, link.Handle)
	assert.Nil(t, link.Code)

	_, err = f.svc.GetInviteLink(ctx, "stranger", created.Crew.ID)
	requireAppError(t, err, 404, CodeCrewNotFound)
}

// seedLegacyCrew stores a pre-registry crew with admin as its only member and admin.
func (f *fixture) seedLegacyCrew(t *testing.T, id domain.CrewID, legacyCode string, admin domain.TravelerID) {
	t.Helper()
	now := f.clk.Now()
	c := crewrepo.Crew{ID: id, Name: "Old Crew", CreatedBy: admin, CreatedAt: now, UpdatedAt: now}
	if legacyCode != "" {
		c.LegacyJoinCode = &legacyCode
	}
	f.crews.SeedLegacyCrew(c)
	require.NoError(t, f.crews.AddMember(context.Background(), crewrepo.Membership{CrewID: id, TravelerID: admin, CreatedAt: now}))
	f.crews.SeedRole(crewrepo.Role{CrewID: id, TravelerID: admin, Role: domain.RoleAdmin, CreatedAt: now})
}

func TestService_GetInviteLink_AdminGetsFreshCodeWhenNoneUsable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	f.seedLegacyCrew(t, "crew-bare", "", t1)

	link, err := f.svc.GetInviteLink(ctx, t1, "crew-bare")
	require.NoError(t, err)
	require.NotNil(t, link.Code)

	p, err := f.svc.ResolveInvite(ctx, domain.InviteValueFromURL(link.URL))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewID("crew-bare"), p.ID)
	require.NotNil(t, p.Admin)
	assert.Equal(t, t1, p.Admin.TravelerID)
}

func TestService_GetInviteLink_MemberCannotMintCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	t2 := f.traveler(t, "t2", "Rui", "Costa", "")
	f.seedLegacyCrew(t, "crew-bare", "", t1)
	require.NoError(t, f.crews.AddMember(ctx, crewrepo.Membership{CrewID: "crew-bare", TravelerID: t2, CreatedAt: f.clk.Now()}))

	_, err := f.svc.GetInviteLink(ctx, t2, "crew-bare")
	requireAppError(t, err, 403, CodeNotAuthorized)

	codes, err := f.crews.ListJoinCodes(ctx, "crew-bare")
	require.NoError(t, err)
	assert.Empty(t, codes, "a refused member must not leave a registry row behind")
}

func TestService_GetInviteLink_SkipsDeactivatedLegacyCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	t2 := f.traveler(t, "t2", "Rui", "Costa", "")
	f.seedLegacyCrew(t, "crew-legacy", "LGCY42", t1)
	require.NoError(t, f.crews.AddMember(ctx, crewrepo.Membership{CrewID: "crew-legacy", TravelerID: t2, CreatedAt: f.clk.Now()}))

	_, err := f.svc.ResolveInvite(ctx, "LGCY42")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeactivateInvite(ctx, t1, "crew-legacy", "LGCY42"))

	_, err = f.svc.GetInviteLink(ctx, t2, "crew-legacy")
	requireAppError(t, err, 403, CodeNotAuthorized)

	link, err := f.svc.GetInviteLink(ctx, t1, "crew-legacy")
	require.NoError(t, err)
	require.NotNil(t, link.Code)
	assert.NotEqual(t, "LGCY42", *link.Code)
	p, err := f.svc.ResolveInvite(ctx, domain.InviteValueFromURL(link.URL))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewID("crew-legacy"), p.ID)
}

func TestService_DeactivateInvite_UnregisteredLegacyCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	t1 := f.traveler(t, "t1", "Tess", "Ng", "")
	f.seedLegacyCrew(t, "crew-legacy", "LGCY44", t1)
	f.seedLegacyCrew(t, "crew-other", "OTHR55", t1)

	require.NoError(t, f.svc.DeactivateInvite(ctx, t1, "crew-legacy", "lgcy44"))

	jc, err := f.crews.GetJoinCode(ctx, "LGCY44")
	require.NoError(t, err)
	assert.False(t, jc.IsActive)
	require.NotNil(t, jc.DeactivatedAt)

	_, err = f.svc.ResolveInvite(ctx, "LGCY44")
	requireAppError(t, err, 404, CodeInviteInvalid)

	// Another crew's legacy code cannot be retired through this crew.
	err = f.svc.DeactivateInvite(ctx, t1, "crew-legacy", "OTHR55")
	requireAppError(t, err, 404, CodeInviteInvalid)
	_, err = f.svc.ResolveInvite(ctx, "OTHR55")
	require.NoError(t, err)
}

func TestService_BackfillLegacyCodes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := f.clk.Now()
	for _, c := range []struct{ id, code string }{{"c1", "AAAA22"}, {"c2", "BBBB33"}} {
		code := c.code
		f.crews.SeedLegacyCrew(crewrepo.Crew{ID: domain.CrewID(c.id), Name: c.id, LegacyJoinCode: &code, CreatedBy: "t1", CreatedAt: now, UpdatedAt: now})
	}
	_, err := f.svc.ResolveInvite(ctx, "AAAA22")
	require.NoError(t, err)

	res, err := f.svc.BackfillLegacyCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Scanned: 2, Inserted: 1}, res)

	_, err = f.crews.GetJoinCode(ctx, "BBBB33")
	require.NoError(t, err)
}
