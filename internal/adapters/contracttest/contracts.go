package contracttest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tripwell/crew-planner-api/internal/domain"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	idempotencyport "github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
	travelerrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	triprepoport "github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

type CleanupFunc = func()

type TravelerRepoFactory func(t *testing.T) (travelerrepoport.Repository, CleanupFunc)
type CrewRepoFactory func(t *testing.T) (crewrepoport.Repository, CleanupFunc)
type TripRepoFactory func(t *testing.T) (triprepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/crews",
		BodyHash: "abc",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"c1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":"c1"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different body hash is a different request.
	other := fp
	other.BodyHash = "def"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other fingerprint: ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":"c2"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":"c2"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	purger, ok := store.(idempotencyport.Purger)
	if !ok {
		return
	}
	fresh := fp
	fresh.Key = idempotencyport.Key("k-" + uuid.NewString())
	if err := store.Put(ctx, fresh, idempotencyport.Record{StatusCode: 201, Body: []byte(`{}`), CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	n, err := purger.DeleteOlderThan(ctx, time.Unix(124, 0).UTC())
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n < 1 {
		t.Fatalf("DeleteOlderThan removed %d records, want at least 1", n)
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("expected purged record gone: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Get(ctx, fresh); err != nil || !ok {
		t.Fatalf("expected fresh record kept: ok=%v err=%v", ok, err)
	}
}

func RunTravelerRepo(t *testing.T, newRepo TravelerRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	suffix := shortID()
	sub := domain.SubjectID("sub-a-" + suffix)
	email := "alice-" + suffix + "@example.com"
	aID := domain.TravelerID(uuid.NewString())
	if err := repo.Create(ctx, travelerrepoport.Traveler{
		ID:        aID,
		Subject:   &sub,
		TenantID:  "tenant-1",
		Email:     &email,
		FirstName: strPtr("Alice"),
		LastName:  strPtr("Johnson"),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FirstName == nil || *got.FirstName != "Alice" || got.TenantID != "tenant-1" {
		t.Fatalf("unexpected traveler: %#v", got)
	}
	if _, err := repo.GetBySubject(ctx, sub); err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if got, err := repo.GetByEmail(ctx, strings.ToUpper(email)); err != nil || got.ID != aID {
		t.Fatalf("GetByEmail (case-insensitive): id=%v err=%v", got.ID, err)
	}
	if _, err := repo.GetByID(ctx, domain.TravelerID(uuid.NewString())); !errors.Is(err, travelerrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want ErrNotFound", err)
	}

	// Subject uniqueness.
	if err := repo.Create(ctx, travelerrepoport.Traveler{
		ID:        domain.TravelerID(uuid.NewString()),
		Subject:   &sub,
		TenantID:  "tenant-1",
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, travelerrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("duplicate subject: err=%v, want ErrSubjectAlreadyBound", err)
	}

	// Email uniqueness.
	if err := repo.Create(ctx, travelerrepoport.Traveler{
		ID:        domain.TravelerID(uuid.NewString()),
		TenantID:  "tenant-1",
		Email:     &email,
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, travelerrepoport.ErrEmailAlreadyInUse) {
		t.Fatalf("duplicate email: err=%v, want ErrEmailAlreadyInUse", err)
	}

	// Pre-provisioned traveler binds its subject on first sign-in.
	bEmail := "bob-" + suffix + "@example.com"
	bID := domain.TravelerID(uuid.NewString())
	b := travelerrepoport.Traveler{
		ID:        bID,
		TenantID:  "tenant-1",
		Email:     &bEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	bSub := domain.SubjectID("sub-b-" + suffix)
	b.Subject = &bSub
	b.FirstName = strPtr("Bob")
	b.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update bind subject: %v", err)
	}
	if got, err := repo.GetBySubject(ctx, bSub); err != nil || got.ID != bID {
		t.Fatalf("GetBySubject after bind: id=%v err=%v", got.ID, err)
	}

	// A bound subject never changes.
	other := domain.SubjectID("sub-other-" + suffix)
	b.Subject = &other
	if err := repo.Update(ctx, b); !errors.Is(err, travelerrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("rebind subject: err=%v, want ErrSubjectAlreadyBound", err)
	}

	missing := travelerrepoport.Traveler{ID: domain.TravelerID(uuid.NewString()), TenantID: "tenant-1", CreatedAt: now, UpdatedAt: now}
	if err := repo.Update(ctx, missing); !errors.Is(err, travelerrepoport.ErrNotFound) {
		t.Fatalf("Update missing: err=%v, want ErrNotFound", err)
	}
}

// RunCrewRepo exercises crew bootstrap, membership, roles and the join code registry.
// Travelers are seeded through the traveler repo so relational backends can enforce references.
func RunCrewRepo(t *testing.T, newTravelerRepo TravelerRepoFactory, newCrewRepo CrewRepoFactory) {
	t.Helper()
	ctx := context.Background()

	travelers, tCleanup := newTravelerRepo(t)
	if tCleanup != nil {
		t.Cleanup(tCleanup)
	}
	crews, cCleanup := newCrewRepo(t)
	if cCleanup != nil {
		t.Cleanup(cCleanup)
	}

	now := time.Unix(2000, 0).UTC()
	founder := seedTraveler(t, travelers, now)
	joiner := seedTraveler(t, travelers, now)

	a := newBootstrap(founder, now)
	if err := crews.Bootstrap(ctx, a); err != nil {
		t.Fatalf("Bootstrap a: %v", err)
	}

	got, err := crews.GetByID(ctx, a.Crew.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != a.Crew.Name || got.Handle == nil || *got.Handle != *a.Crew.Handle || got.LegacyJoinCode != nil {
		t.Fatalf("unexpected crew: %#v", got)
	}
	if got, err := crews.GetByHandle(ctx, *a.Crew.Handle); err != nil || got.ID != a.Crew.ID {
		t.Fatalf("GetByHandle: id=%v err=%v", got.ID, err)
	}
	if ok, err := crews.HandleExists(ctx, *a.Crew.Handle); err != nil || !ok {
		t.Fatalf("HandleExists: ok=%v err=%v", ok, err)
	}
	if ok, err := crews.HandleExists(ctx, "no-such-"+shortID()); err != nil || ok {
		t.Fatalf("HandleExists missing: ok=%v err=%v", ok, err)
	}
	if _, err := crews.GetByHandle(ctx, "no-such-"+shortID()); !errors.Is(err, crewrepoport.ErrNotFound) {
		t.Fatalf("GetByHandle missing: err=%v, want ErrNotFound", err)
	}
	if _, err := crews.GetByLegacyJoinCode(ctx, a.JoinCode.Code); !errors.Is(err, crewrepoport.ErrNotFound) {
		t.Fatalf("GetByLegacyJoinCode: err=%v, want ErrNotFound", err)
	}

	// Founder rows.
	if _, err := crews.GetMembership(ctx, a.Crew.ID, founder); err != nil {
		t.Fatalf("GetMembership founder: %v", err)
	}
	if ok, err := crews.HasRole(ctx, a.Crew.ID, founder, domain.RoleAdmin); err != nil || !ok {
		t.Fatalf("HasRole founder admin: ok=%v err=%v", ok, err)
	}
	jc, err := crews.GetJoinCode(ctx, a.JoinCode.Code)
	if err != nil {
		t.Fatalf("GetJoinCode: %v", err)
	}
	if jc.CrewID != a.Crew.ID || !jc.IsActive || jc.ExpiresAt != nil {
		t.Fatalf("unexpected join code: %#v", jc)
	}
	if ok, err := crews.JoinCodeExists(ctx, a.JoinCode.Code); err != nil || !ok {
		t.Fatalf("JoinCodeExists: ok=%v err=%v", ok, err)
	}

	// Bootstrap is all-or-nothing: a taken code leaves no crew, membership or role behind.
	dup := newBootstrap(joiner, now)
	dup.JoinCode.Code = a.JoinCode.Code
	dup.JoinCode.CrewID = dup.Crew.ID
	if err := crews.Bootstrap(ctx, dup); !errors.Is(err, crewrepoport.ErrJoinCodeTaken) {
		t.Fatalf("Bootstrap dup code: err=%v, want ErrJoinCodeTaken", err)
	}
	if _, err := crews.GetByID(ctx, dup.Crew.ID); !errors.Is(err, crewrepoport.ErrNotFound) {
		t.Fatalf("crew after failed bootstrap: err=%v, want ErrNotFound", err)
	}
	if ok, err := crews.HandleExists(ctx, *dup.Crew.Handle); err != nil || ok {
		t.Fatalf("handle after failed bootstrap: ok=%v err=%v", ok, err)
	}
	if cs, err := crews.ListForTraveler(ctx, joiner); err != nil || len(cs) != 0 {
		t.Fatalf("memberships after failed bootstrap: %#v err=%v", cs, err)
	}
	if ok, err := crews.HasRole(ctx, dup.Crew.ID, joiner, domain.RoleAdmin); err != nil || ok {
		t.Fatalf("role after failed bootstrap: ok=%v err=%v", ok, err)
	}

	dupHandle := newBootstrap(joiner, now)
	dupHandle.Crew.Handle = a.Crew.Handle
	if err := crews.Bootstrap(ctx, dupHandle); !errors.Is(err, crewrepoport.ErrHandleTaken) {
		t.Fatalf("Bootstrap dup handle: err=%v, want ErrHandleTaken", err)
	}
	if _, err := crews.GetJoinCode(ctx, dupHandle.JoinCode.Code); !errors.Is(err, crewrepoport.ErrNotFound) {
		t.Fatalf("join code after failed bootstrap: err=%v, want ErrNotFound", err)
	}

	// Membership.
	if err := crews.AddMember(ctx, crewrepoport.Membership{CrewID: a.Crew.ID, TravelerID: joiner, CreatedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := crews.AddMember(ctx, crewrepoport.Membership{CrewID: a.Crew.ID, TravelerID: joiner, CreatedAt: now.Add(2 * time.Minute)}); !errors.Is(err, crewrepoport.ErrAlreadyMember) {
		t.Fatalf("AddMember twice: err=%v, want ErrAlreadyMember", err)
	}
	if n, err := crews.CountMembers(ctx, a.Crew.ID); err != nil || n != 2 {
		t.Fatalf("CountMembers: n=%d err=%v", n, err)
	}
	ms, err := crews.ListMembers(ctx, a.Crew.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(ms) != 2 || ms[0].TravelerID != founder || ms[1].TravelerID != joiner {
		t.Fatalf("unexpected members: %#v", ms)
	}
	if ok, err := crews.HasRole(ctx, a.Crew.ID, joiner, domain.RoleAdmin); err != nil || ok {
		t.Fatalf("joiner should not be admin: ok=%v err=%v", ok, err)
	}
	roles, err := crews.ListRoles(ctx, a.Crew.ID)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 1 || roles[0].TravelerID != founder || roles[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected roles: %#v", roles)
	}

	// ListForTraveler returns newest membership first.
	b := newBootstrap(joiner, now.Add(time.Hour))
	if err := crews.Bootstrap(ctx, b); err != nil {
		t.Fatalf("Bootstrap b: %v", err)
	}
	mine, err := crews.ListForTraveler(ctx, joiner)
	if err != nil {
		t.Fatalf("ListForTraveler: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != b.Crew.ID || mine[1].ID != a.Crew.ID {
		t.Fatalf("unexpected crews for traveler: %#v", mine)
	}

	// Registry: create, ensure, list, deactivate.
	expires := now.Add(24 * time.Hour)
	second := crewrepoport.JoinCode{Code: newCode(), CrewID: a.Crew.ID, IsActive: true, ExpiresAt: &expires, CreatedAt: now.Add(time.Minute)}
	if err := crews.CreateJoinCode(ctx, second); err != nil {
		t.Fatalf("CreateJoinCode: %v", err)
	}
	if err := crews.CreateJoinCode(ctx, second); !errors.Is(err, crewrepoport.ErrJoinCodeTaken) {
		t.Fatalf("CreateJoinCode dup: err=%v, want ErrJoinCodeTaken", err)
	}
	codes, err := crews.ListJoinCodes(ctx, a.Crew.ID)
	if err != nil {
		t.Fatalf("ListJoinCodes: %v", err)
	}
	if len(codes) != 2 || codes[0].Code != second.Code || codes[1].Code != a.JoinCode.Code {
		t.Fatalf("unexpected codes: %#v", codes)
	}
	if codes[0].ExpiresAt == nil || !codes[0].ExpiresAt.Equal(expires) {
		t.Fatalf("expiresAt not preserved: %#v", codes[0])
	}

	if err := crews.DeactivateJoinCode(ctx, second.Code, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("DeactivateJoinCode: %v", err)
	}
	jc, err = crews.GetJoinCode(ctx, second.Code)
	if err != nil {
		t.Fatalf("GetJoinCode after deactivate: %v", err)
	}
	if jc.IsActive || jc.DeactivatedAt == nil {
		t.Fatalf("expected inactive code: %#v", jc)
	}
	if err := crews.DeactivateJoinCode(ctx, newCode(), now); !errors.Is(err, crewrepoport.ErrNotFound) {
		t.Fatalf("DeactivateJoinCode missing: err=%v, want ErrNotFound", err)
	}

	// EnsureJoinCode never reactivates an existing row.
	ensured, err := crews.EnsureJoinCode(ctx, crewrepoport.JoinCode{Code: second.Code, CrewID: a.Crew.ID, IsActive: true, CreatedAt: now})
	if err != nil {
		t.Fatalf("EnsureJoinCode existing: %v", err)
	}
	if ensured.IsActive {
		t.Fatalf("EnsureJoinCode reactivated code: %#v", ensured)
	}
	fresh := crewrepoport.JoinCode{Code: newCode(), CrewID: a.Crew.ID, IsActive: true, CreatedAt: now}
	ensured, err = crews.EnsureJoinCode(ctx, fresh)
	if err != nil {
		t.Fatalf("EnsureJoinCode new: %v", err)
	}
	if ensured.Code != fresh.Code || !ensured.IsActive {
		t.Fatalf("unexpected ensured code: %#v", ensured)
	}
}

// RunTripRepo exercises trip persistence. Travelers and crews are seeded first.
func RunTripRepo(t *testing.T, newTravelerRepo TravelerRepoFactory, newCrewRepo CrewRepoFactory, newTripRepo TripRepoFactory) {
	t.Helper()
	ctx := context.Background()

	travelers, tCleanup := newTravelerRepo(t)
	if tCleanup != nil {
		t.Cleanup(tCleanup)
	}
	crews, cCleanup := newCrewRepo(t)
	if cCleanup != nil {
		t.Cleanup(cCleanup)
	}
	trips, rCleanup := newTripRepo(t)
	if rCleanup != nil {
		t.Cleanup(rCleanup)
	}

	now := time.Unix(3000, 0).UTC()
	creator := seedTraveler(t, travelers, now)
	bs := newBootstrap(creator, now)
	if err := crews.Bootstrap(ctx, bs); err != nil {
		t.Fatalf("seed crew: %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	meta := domain.ComputeTripMetadata(start, end)
	season := string(meta.Season)
	first := triprepoport.Trip{
		ID:          domain.TripID(uuid.NewString()),
		CrewID:      bs.Crew.ID,
		Name:        "Beach Trip 2025",
		Destination: strPtr("Outer Banks"),
		Purpose:     domain.TripPurposeFriends,
		StartDate:   &start,
		EndDate:     &end,
		Season:      &season,
		DaysTotal:   &meta.DaysTotal,
		DateRange:   &meta.DateRange,
		CreatedBy:   creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := trips.Create(ctx, first); err != nil {
		t.Fatalf("Create trip: %v", err)
	}
	if err := trips.Create(ctx, first); !errors.Is(err, triprepoport.ErrAlreadyExists) {
		t.Fatalf("Create dup trip: err=%v, want ErrAlreadyExists", err)
	}
	got, err := trips.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID trip: %v", err)
	}
	if got.Name != first.Name || got.StartDate == nil || !got.StartDate.Equal(start) || got.DaysTotal == nil || *got.DaysTotal != 8 {
		t.Fatalf("unexpected trip: %#v", got)
	}

	second := triprepoport.Trip{
		ID:        domain.TripID(uuid.NewString()),
		CrewID:    bs.Crew.ID,
		Name:      "Ski Weekend",
		Purpose:   domain.TripPurposeGeneral,
		CreatedBy: creator,
		CreatedAt: now.Add(time.Minute),
		UpdatedAt: now.Add(time.Minute),
	}
	if err := trips.Create(ctx, second); err != nil {
		t.Fatalf("Create second trip: %v", err)
	}
	list, err := trips.ListByCrew(ctx, bs.Crew.ID)
	if err != nil {
		t.Fatalf("ListByCrew: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected trip order: %#v", list)
	}
	if n, err := trips.CountByCrew(ctx, bs.Crew.ID); err != nil || n != 2 {
		t.Fatalf("CountByCrew: n=%d err=%v", n, err)
	}

	second.Name = "Ski Week"
	second.UpdatedAt = now.Add(time.Hour)
	if err := trips.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err := trips.GetByID(ctx, second.ID); err != nil || got.Name != "Ski Week" {
		t.Fatalf("GetByID after save: name=%q err=%v", got.Name, err)
	}
	missing := second
	missing.ID = domain.TripID(uuid.NewString())
	if err := trips.Save(ctx, missing); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("Save missing: err=%v, want ErrNotFound", err)
	}
}

func seedTraveler(t *testing.T, repo travelerrepoport.Repository, now time.Time) domain.TravelerID {
	t.Helper()
	id := domain.TravelerID(uuid.NewString())
	sub := domain.SubjectID("sub-" + uuid.NewString())
	if err := repo.Create(context.Background(), travelerrepoport.Traveler{
		ID:        id,
		Subject:   &sub,
		TenantID:  "tenant-1",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed traveler: %v", err)
	}
	return id
}

func newBootstrap(founder domain.TravelerID, now time.Time) crewrepoport.Bootstrap {
	crewID := domain.CrewID(uuid.NewString())
	handle := "crew-" + shortID()
	return crewrepoport.Bootstrap{
		Crew: crewrepoport.Crew{
			ID:        crewID,
			Name:      "Crew " + handle,
			Handle:    &handle,
			CreatedBy: founder,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Membership: crewrepoport.Membership{CrewID: crewID, TravelerID: founder, CreatedAt: now},
		Role:       crewrepoport.Role{CrewID: crewID, TravelerID: founder, Role: domain.RoleAdmin, CreatedAt: now},
		JoinCode:   crewrepoport.JoinCode{Code: newCode(), CrewID: crewID, IsActive: true, CreatedAt: now},
	}
}

// newCode returns a code unlikely to collide with rows left by earlier runs against a shared database.
func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func strPtr(s string) *string { return &s }
