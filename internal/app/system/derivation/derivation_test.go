package derivation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	memstore "github.com/dalemusser/compliancehub/internal/app/store/memory"
	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/derivation"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func agencies(n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = primitive.NewObjectID()
	}
	return out
}

func submit(t *testing.T, db *memstore.DB, number int, agency primitive.ObjectID, status models.SubmissionStatus) {
	t.Helper()
	_, err := db.Submissions().Create(context.Background(), models.Submission{
		StandardNumber: number,
		Agency:         agency,
		Status:         status,
		Title:          "evidence",
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
}

func newEngine(db *memstore.DB) *derivation.Engine {
	return derivation.New(db.Standards(), db.Submissions(), zap.NewNop())
}

func TestDerive_ProgressFormula(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(4)
	db.Standards().Put(models.Standard{Number: 1, AssignedAgencies: ag, Status: models.StandardDidntSubmit})
	for _, a := range ag[:3] {
		submit(t, db, 1, a, models.SubmissionApproved)
	}

	res, err := newEngine(db).Derive(context.Background(), 1)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if res.Progress != 75 {
		t.Errorf("progress: got %d, want 75", res.Progress)
	}
	if res.Status != models.StandardPendingApproval {
		t.Errorf("status: got %q, want pending_approval", res.Status)
	}
	if res.Counts.Approved != 3 || res.Counts.DidntSubmit != 1 {
		t.Errorf("counts: got %+v", res.Counts)
	}

	st, _ := db.Standards().GetByNumber(context.Background(), 1)
	if st.Status != models.StandardPendingApproval || st.Progress != 75 {
		t.Errorf("persisted: got (%q, %d)", st.Status, st.Progress)
	}
	if st.DerivedAt == nil {
		t.Error("expected DerivedAt to be set")
	}
}

func TestDerive_AllApproved(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(3)
	db.Standards().Put(models.Standard{Number: 2, AssignedAgencies: ag})
	for _, a := range ag {
		submit(t, db, 2, a, models.SubmissionApproved)
	}

	res, err := newEngine(db).Derive(context.Background(), 2)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if res.Status != models.StandardApproved || res.Progress != 100 {
		t.Errorf("got (%q, %d), want (approved, 100)", res.Status, res.Progress)
	}
}

func TestDerive_Idempotent(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(3)
	db.Standards().Put(models.Standard{Number: 3, AssignedAgencies: ag})
	submit(t, db, 3, ag[0], models.SubmissionApproved)
	submit(t, db, 3, ag[1], models.SubmissionRejected)

	eng := newEngine(db)
	first, err := eng.Derive(context.Background(), 3)
	if err != nil {
		t.Fatalf("first Derive: %v", err)
	}
	second, err := eng.Derive(context.Background(), 3)
	if err != nil {
		t.Fatalf("second Derive: %v", err)
	}
	if first.Status != second.Status || first.Progress != second.Progress {
		t.Errorf("not idempotent: %+v vs %+v", first, second)
	}
	if !first.Changed {
		t.Error("first run should report a change")
	}
	if second.Changed {
		t.Error("second run should not report a change")
	}
}

func TestDerive_NoAgenciesIsNoop(t *testing.T) {
	db := memstore.NewDB()
	db.Standards().Put(models.Standard{Number: 4, Status: models.StandardRejected, Progress: 40})
	db.FailOn(memstore.OpStandardSetDerived, errors.New("must not write"))

	res, err := newEngine(db).Derive(context.Background(), 4)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if res.Written {
		t.Error("expected no write")
	}
	if res.Status != models.StandardRejected || res.Progress != 40 {
		t.Errorf("got (%q, %d), want prior (rejected, 40)", res.Status, res.Progress)
	}
	st, _ := db.Standards().GetByNumber(context.Background(), 4)
	if st.Status != models.StandardRejected || st.Progress != 40 || st.DerivedAt != nil {
		t.Errorf("standard was modified: %+v", st)
	}
}

func TestDerive_NotFound(t *testing.T) {
	db := memstore.NewDB()
	_, err := newEngine(db).Derive(context.Background(), 99)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDerive_StorageFailure(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(1)
	db.Standards().Put(models.Standard{Number: 5, AssignedAgencies: ag})
	db.FailOn(memstore.OpSubmissionFind, errors.New("connection reset"))

	_, err := newEngine(db).Derive(context.Background(), 5)
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if errs.KindOf(err) != errs.KindStorage {
		t.Errorf("kind: got %q", errs.KindOf(err))
	}
}

func TestDerive_AgencyPrecedence(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(2)
	outsider := primitive.NewObjectID()
	db.Standards().Put(models.Standard{Number: 6, AssignedAgencies: ag})

	// ag[0]: rejected then approved -> approved
	submit(t, db, 6, ag[0], models.SubmissionRejected)
	submit(t, db, 6, ag[0], models.SubmissionApproved)
	// ag[1]: rejected and pending -> pending
	submit(t, db, 6, ag[1], models.SubmissionRejected)
	submit(t, db, 6, ag[1], models.SubmissionPending)
	// unassigned agencies never count
	submit(t, db, 6, outsider, models.SubmissionApproved)
	// other standards never count
	submit(t, db, 7, ag[1], models.SubmissionApproved)

	res, err := newEngine(db).Derive(context.Background(), 6)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	want := derivation.Counts{Total: 2, Approved: 1, Pending: 1}
	if res.Counts != want {
		t.Errorf("counts: got %+v, want %+v", res.Counts, want)
	}
	if res.Status != models.StandardPendingApproval || res.Progress != 50 {
		t.Errorf("got (%q, %d), want (pending_approval, 50)", res.Status, res.Progress)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		counts derivation.Counts
		want   models.StandardStatus
	}{
		{"all approved", derivation.Counts{Total: 2, Approved: 2}, models.StandardApproved},
		{"pending wins over rejected", derivation.Counts{Total: 2, Pending: 1, Rejected: 1}, models.StandardPendingApproval},
		{"approved with missing", derivation.Counts{Total: 2, Approved: 1, DidntSubmit: 1}, models.StandardPendingApproval},
		{"approved with rejected", derivation.Counts{Total: 2, Approved: 1, Rejected: 1}, models.StandardPendingApproval},
		{"all rejected", derivation.Counts{Total: 2, Rejected: 2}, models.StandardRejected},
		{"rejected with missing", derivation.Counts{Total: 2, Rejected: 1, DidntSubmit: 1}, models.StandardDidntSubmit},
		{"nothing submitted", derivation.Counts{Total: 3, DidntSubmit: 3}, models.StandardDidntSubmit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := derivation.StatusFor(tt.counts); got != tt.want {
				t.Errorf("StatusFor(%+v) = %q, want %q", tt.counts, got, tt.want)
			}
		})
	}
}

func TestProgress_Rounds(t *testing.T) {
	tests := []struct {
		approved, total, want int
	}{
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half away from zero
		{0, 5, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		got := derivation.Progress(derivation.Counts{Total: tt.total, Approved: tt.approved})
		if got != tt.want {
			t.Errorf("Progress(%d/%d) = %d, want %d", tt.approved, tt.total, got, tt.want)
		}
	}
}

func TestDerive_ConcurrentRunsConverge(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(5)
	db.Standards().Put(models.Standard{Number: 8, AssignedAgencies: ag})
	eng := newEngine(db)

	var wg sync.WaitGroup
	for _, a := range ag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submit(t, db, 8, a, models.SubmissionApproved)
			if _, err := eng.Derive(context.Background(), 8); err != nil {
				t.Errorf("Derive: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := db.Standards().GetByNumber(context.Background(), 8)
	if st.Status != models.StandardApproved || st.Progress != 100 {
		t.Errorf("final state: got (%q, %d), want (approved, 100)", st.Status, st.Progress)
	}
}

func TestDerive_AuditsOnlyChanges(t *testing.T) {
	db := memstore.NewDB()
	rec := memstore.NewAudit()
	ag := agencies(1)
	db.Standards().Put(models.Standard{Number: 9, AssignedAgencies: ag, Status: models.StandardDidntSubmit})
	submit(t, db, 9, ag[0], models.SubmissionPending)

	eng := derivation.New(db.Standards(), db.Submissions(), zap.NewNop(),
		derivation.WithAudit(auditlog.New(rec, zap.NewNop(), auditlog.Config{Compliance: auditlog.ModeDB})))

	for i := 0; i < 3; i++ {
		if _, err := eng.Derive(context.Background(), 9); err != nil {
			t.Fatalf("Derive: %v", err)
		}
	}
	if n := len(rec.Events(audit.EventStandardDerived)); n != 1 {
		t.Errorf("standard_derived events: got %d, want 1", n)
	}
}

func TestDeriveAll(t *testing.T) {
	db := memstore.NewDB()
	ag := agencies(2)
	db.Standards().Put(models.Standard{Number: 1, AssignedAgencies: ag})
	db.Standards().Put(models.Standard{Number: 2, AssignedAgencies: ag})
	db.Standards().Put(models.Standard{Number: 3})
	submit(t, db, 1, ag[0], models.SubmissionApproved)
	submit(t, db, 1, ag[1], models.SubmissionApproved)

	out, err := newEngine(db).DeriveAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("DeriveAll: %v", err)
	}
	want := derivation.AllResult{Derived: 2, Skipped: 1}
	if out != want {
		t.Errorf("got %+v, want %+v", out, want)
	}

	st, _ := db.Standards().GetByNumber(context.Background(), 1)
	if st.Status != models.StandardApproved {
		t.Errorf("standard 1: got %q, want approved", st.Status)
	}
}
