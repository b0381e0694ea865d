package enrollment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	memstore "github.com/dalemusser/compliancehub/internal/app/store/memory"
	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (f *fixture) reconciler() *enrollment.Reconciler {
	return enrollment.NewReconciler(f.mgr, f.db.Initiatives(), f.db.Volunteers())
}

func (f *fixture) run(t *testing.T) enrollment.Report {
	t.Helper()
	rep, err := f.reconciler().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rep
}

func TestReconcile_AddsMissingVolunteerEntry(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeActive, 3)
	v := f.volunteer(t)

	f.db.FailOn(memstore.OpVolunteerSave, errors.New("write concern timeout"))
	if _, err := f.mgr.Enroll(context.Background(), in.ID, v.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	f.db.FailOn(memstore.OpVolunteerSave, nil)

	rep := f.run(t)
	if got := rep.Repairs[enrollment.RepairMissingVolunteerEntry]; got != 1 {
		t.Fatalf("missing_volunteer_entry repairs: got %d, want 1", got)
	}

	gotIn, gotV := f.reload(t, in, v)
	idx := gotV.MembershipIndex(in.ID)
	if idx < 0 {
		t.Fatal("volunteer should reference initiative after reconcile")
	}
	if !gotV.Initiatives[idx].JoinedAt.Equal(gotIn.Volunteers[0].JoinedAt) {
		t.Error("joined_at should be copied from the roster")
	}
	if n := len(f.rec.Events(audit.EventEnrollmentRepaired)); n != 1 {
		t.Errorf("enrollment_repaired events: got %d, want 1", n)
	}
}

func TestReconcile_RemovesOrphanVolunteerEntry(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeActive, 3)
	v := f.db.Volunteers().Put(models.Volunteer{
		FullName:    "Orphan",
		Initiatives: []models.VolunteerMembership{{Initiative: in.ID, JoinedAt: time.Now().UTC()}},
	})

	rep := f.run(t)
	if got := rep.Repairs[enrollment.RepairOrphanVolunteerEntry]; got != 1 {
		t.Fatalf("orphan_volunteer_entry repairs: got %d, want 1", got)
	}
	_, gotV := f.reload(t, in, v)
	if gotV.MembershipIndex(in.ID) >= 0 {
		t.Error("orphan membership should be removed")
	}
}

func TestReconcile_DropsDanglingReferences(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeActive, 5)
	gone := f.initiative(t, models.InitiativeActive, 5)
	v := f.volunteer(t)
	ghost := f.volunteer(t)

	for _, id := range []primitive.ObjectID{in.ID, gone.ID} {
		if _, err := f.mgr.Enroll(context.Background(), id, v.ID); err != nil {
			t.Fatalf("Enroll: %v", err)
		}
	}
	if _, err := f.mgr.Enroll(context.Background(), in.ID, ghost.ID); err != nil {
		t.Fatalf("Enroll ghost: %v", err)
	}
	f.db.Initiatives().Remove(gone.ID)
	f.db.Volunteers().Remove(ghost.ID)

	rep := f.run(t)
	if got := rep.Repairs[enrollment.RepairDanglingRosterEntry]; got != 1 {
		t.Errorf("dangling_roster_entry repairs: got %d, want 1", got)
	}
	if got := rep.Repairs[enrollment.RepairDanglingVolunteerEntry]; got != 1 {
		t.Errorf("dangling_volunteer_entry repairs: got %d, want 1", got)
	}

	gotIn, gotV := f.reload(t, in, v)
	if gotIn.RosterIndex(ghost.ID) >= 0 {
		t.Error("roster should no longer reference deleted volunteer")
	}
	if gotIn.CurrentVolunteers != 1 || len(gotIn.Volunteers) != 1 {
		t.Errorf("roster: got %d entries, current %d; want 1/1", len(gotIn.Volunteers), gotIn.CurrentVolunteers)
	}
	if gotV.MembershipIndex(gone.ID) >= 0 {
		t.Error("volunteer should no longer reference deleted initiative")
	}
	if gotV.MembershipIndex(in.ID) < 0 {
		t.Error("valid membership should be kept")
	}
}

func TestReconcile_FixesDuplicateAndStaleCount(t *testing.T) {
	f := newFixture(t)
	v := f.volunteer(t)
	joined := time.Now().UTC().Truncate(time.Millisecond)
	dup := f.db.Initiatives().Put(models.Initiative{
		Title:         "Duplicated",
		Status:        models.InitiativeActive,
		MaxVolunteers: 5,
		Volunteers: []models.RosterEntry{
			{Volunteer: &v.ID, JoinedAt: joined},
			{Volunteer: &v.ID, JoinedAt: joined.Add(time.Minute)},
		},
		CurrentVolunteers: 2,
	})
	stale := f.db.Initiatives().Put(models.Initiative{
		Title:         "Stale",
		Status:        models.InitiativeActive,
		MaxVolunteers: 5,
		Volunteers: []models.RosterEntry{
			{Contact: &models.VolunteerContact{FullName: "Walk-in"}, JoinedAt: joined},
		},
		CurrentVolunteers: 4,
	})

	rep := f.run(t)
	if got := rep.Repairs[enrollment.RepairDuplicateRosterEntry]; got != 1 {
		t.Errorf("duplicate_roster_entry repairs: got %d, want 1", got)
	}
	if got := rep.Repairs[enrollment.RepairStaleCount]; got != 1 {
		t.Errorf("stale_count repairs: got %d, want 1", got)
	}

	gotDup, gotV := f.reload(t, dup, v)
	if len(gotDup.Volunteers) != 1 || gotDup.CurrentVolunteers != 1 {
		t.Errorf("duplicate roster: got %d entries, current %d", len(gotDup.Volunteers), gotDup.CurrentVolunteers)
	}
	if !gotDup.Volunteers[0].JoinedAt.Equal(joined) {
		t.Error("first roster entry should be kept")
	}
	if idx := gotV.MembershipIndex(dup.ID); idx < 0 || !gotV.Initiatives[idx].JoinedAt.Equal(joined) {
		t.Error("volunteer should mirror the kept roster entry")
	}

	gotStale, err := f.db.Initiatives().GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if gotStale.CurrentVolunteers != 1 {
		t.Errorf("stale count: got %d, want 1", gotStale.CurrentVolunteers)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeActive, 3)
	v := f.volunteer(t)
	f.db.FailOn(memstore.OpVolunteerSave, errors.New("timeout"))
	if _, err := f.mgr.Enroll(context.Background(), in.ID, v.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	f.db.FailOn(memstore.OpVolunteerSave, nil)

	if rep := f.run(t); rep.Total() == 0 {
		t.Fatal("first pass should repair something")
	}
	if rep := f.run(t); rep.Total() != 0 || rep.Errors != 0 {
		t.Errorf("second pass: got %d repairs, %d errors; want none", rep.Total(), rep.Errors)
	}
}

func TestReconcile_ConsistentDataUntouched(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeGathering, 3)
	v := f.volunteer(t)
	if _, err := f.mgr.Enroll(context.Background(), in.ID, v.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	rep := f.run(t)
	if rep.Total() != 0 {
		t.Errorf("repairs: got %v, want none", rep.Repairs)
	}
	if rep.InitiativesScanned != 1 || rep.VolunteersScanned != 1 {
		t.Errorf("scanned: got %d/%d, want 1/1", rep.InitiativesScanned, rep.VolunteersScanned)
	}
}

func TestReconcile_ListFailureIsStorageError(t *testing.T) {
	f := newFixture(t)
	f.db.FailOn(memstore.OpVolunteerList, errors.New("connection reset"))

	_, err := f.reconciler().Run(context.Background())
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestReconcile_SaveFailureCountedNotReturned(t *testing.T) {
	f := newFixture(t)
	in := f.initiative(t, models.InitiativeActive, 3)
	v := f.volunteer(t)
	f.db.FailOn(memstore.OpVolunteerSave, errors.New("timeout"))
	if _, err := f.mgr.Enroll(context.Background(), in.ID, v.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	rep := f.run(t)
	if rep.Errors != 1 {
		t.Errorf("errors: got %d, want 1", rep.Errors)
	}
	if rep.Total() != 0 {
		t.Errorf("repairs: got %d, want 0", rep.Total())
	}
}

// gatedInitiatives blocks the first GetByID for one id until released.
type gatedInitiatives struct {
	enrollment.InitiativeStore
	id      primitive.ObjectID
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedInitiatives) GetByID(ctx context.Context, id primitive.ObjectID) (models.Initiative, error) {
	if id == g.id {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.InitiativeStore.GetByID(ctx, id)
}

func TestReconcile_OverlappingRunsKeepSeparateReports(t *testing.T) {
	f := newFixture(t)
	v1 := f.volunteer(t)
	in := f.db.Initiatives().Put(models.Initiative{
		Title:             "Roster only",
		Status:            models.InitiativeActive,
		MaxVolunteers:     3,
		Volunteers:        []models.RosterEntry{{Volunteer: &v1.ID, JoinedAt: time.Now().UTC()}},
		CurrentVolunteers: 1,
	})
	missing := primitive.NewObjectID()
	v2 := f.db.Volunteers().Put(models.Volunteer{
		FullName:    "Dangling",
		Initiatives: []models.VolunteerMembership{{Initiative: missing, JoinedAt: time.Now().UTC()}},
	})

	gate := &gatedInitiatives{
		InitiativeStore: f.db.Initiatives(),
		id:              missing,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	mgr := enrollment.New(gate, f.db.Volunteers(), keylock.NewLocal(), nil, nil, zap.NewNop())
	r := enrollment.NewReconciler(mgr, f.db.Initiatives(), f.db.Volunteers())

	type result struct {
		rep enrollment.Report
		err error
	}
	first := make(chan result, 1)
	go func() {
		rep, err := r.Run(context.Background())
		first <- result{rep, err}
	}()

	// The first run has repaired the roster side and is parked on the
	// dangling-membership check.
	<-gate.entered
	second, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	secondRepairs := make(map[string]int, len(second.Repairs))
	for k, n := range second.Repairs {
		secondRepairs[k] = n
	}

	close(gate.release)
	res := <-first
	if res.err != nil {
		t.Fatalf("first Run: %v", res.err)
	}

	if got := res.rep.Repairs[enrollment.RepairMissingVolunteerEntry]; got != 1 {
		t.Errorf("first run missing_volunteer_entry: got %d, want 1", got)
	}
	if res.rep.InitiativesScanned != 1 || res.rep.VolunteersScanned != 2 {
		t.Errorf("first run scanned %d initiatives, %d volunteers; want 1, 2",
			res.rep.InitiativesScanned, res.rep.VolunteersScanned)
	}
	if got := second.Repairs[enrollment.RepairDanglingVolunteerEntry]; got != 1 {
		t.Errorf("second run dangling_volunteer_entry: got %d, want 1", got)
	}
	if got := second.Repairs[enrollment.RepairMissingVolunteerEntry]; got != 0 {
		t.Errorf("second run missing_volunteer_entry: got %d, want 0", got)
	}
	for k, n := range second.Repairs {
		if secondRepairs[k] != n {
			t.Errorf("second run report changed after return: %s %d -> %d", k, secondRepairs[k], n)
		}
	}
	if len(second.Repairs) != len(secondRepairs) {
		t.Errorf("second run report gained keys after return: %v", second.Repairs)
	}

	gotIn, gotV1 := f.reload(t, in, v1)
	if gotV1.MembershipIndex(gotIn.ID) < 0 {
		t.Error("roster volunteer should reference the initiative")
	}
	_, gotV2 := f.reload(t, in, v2)
	if gotV2.MembershipIndex(missing) >= 0 {
		t.Error("dangling membership should be removed")
	}
}
