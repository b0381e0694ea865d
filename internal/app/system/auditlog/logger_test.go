package auditlog_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	memstore "github.com/dalemusser/compliancehub/internal/app/store/memory"
	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/dalemusser/compliancehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.StandardDerived(ctx, 1, models.StandardApproved, 100)
	logger.VolunteerEnrolled(ctx, primitive.NewObjectID(), primitive.NewObjectID(), 1, 5)
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	rec := memstore.NewAudit()
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(rec, zap.New(core), auditlog.Config{
		Compliance: auditlog.ModeOff,
		Enrollment: auditlog.ModeOff,
	})

	logger.StandardDerived(ctx, 3, models.StandardRejected, 0)
	logger.VolunteerWithdrawn(ctx, primitive.NewObjectID(), primitive.NewObjectID(), 0)

	if n := len(rec.Events("")); n != 0 {
		t.Errorf("expected no stored events when config is 'off', got %d", n)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no log entries when config is 'off', got %d", logs.Len())
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	rec := memstore.NewAudit()
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(rec, zap.New(core), auditlog.Config{
		Compliance: auditlog.ModeDB,
		Enrollment: auditlog.ModeDB,
	})

	logger.StandardDerived(ctx, 7, models.StandardPendingApproval, 50)

	events := rec.Events(audit.EventStandardDerived)
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	if events[0].StandardNumber != 7 {
		t.Errorf("StandardNumber: got %d, want 7", events[0].StandardNumber)
	}
	if events[0].Details["progress"] != "50" {
		t.Errorf("progress detail: got %q, want %q", events[0].Details["progress"], "50")
	}
	if logs.Len() != 0 {
		t.Errorf("expected no log entries in db mode, got %d", logs.Len())
	}
}

func TestLogger_Log_ConfigLog(t *testing.T) {
	rec := memstore.NewAudit()
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(rec, zap.New(core), auditlog.Config{
		Compliance: auditlog.ModeLog,
		Enrollment: auditlog.ModeLog,
	})

	initiativeID := primitive.NewObjectID()
	volunteerID := primitive.NewObjectID()
	logger.EnrollmentInconsistency(ctx, initiativeID, volunteerID, "enroll", errors.New("boom"))

	if n := len(rec.Events("")); n != 0 {
		t.Errorf("expected no stored events in log mode, got %d", n)
	}
	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("failed event should log at warn, got %v", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["initiative_id"] != initiativeID.Hex() {
		t.Errorf("initiative_id: got %v, want %s", fields["initiative_id"], initiativeID.Hex())
	}
	if fields["failure_reason"] != "boom" {
		t.Errorf("failure_reason: got %v, want boom", fields["failure_reason"])
	}
}

func TestLogger_Log_PerCategory(t *testing.T) {
	rec := memstore.NewAudit()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(rec, zap.NewNop(), auditlog.Config{
		Compliance: auditlog.ModeOff,
		Enrollment: auditlog.ModeAll,
	})

	logger.DerivationFailed(ctx, 2, "submission_created", errors.New("down"))
	logger.VolunteerEnrolled(ctx, primitive.NewObjectID(), primitive.NewObjectID(), 1, 3)

	if n := len(rec.Events(audit.EventDerivationFailed)); n != 0 {
		t.Errorf("compliance events should be off, got %d", n)
	}
	if n := len(rec.Events(audit.EventVolunteerEnrolled)); n != 1 {
		t.Errorf("enrollment events should be stored, got %d", n)
	}
}

func TestLogger_NilStore(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.NewNop(), auditlog.Config{})
	// must not panic with no writer configured
	logger.SubmissionDeleted(ctx, models.Submission{ID: primitive.NewObjectID(), StandardNumber: 1})
}

func TestLogger_MongoStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Compliance: auditlog.ModeAll,
		Enrollment: auditlog.ModeAll,
	})

	sub := models.Submission{
		ID:             primitive.NewObjectID(),
		StandardNumber: 4,
		Agency:         primitive.NewObjectID(),
		Status:         models.SubmissionApproved,
	}
	logger.SubmissionStatusChanged(ctx, sub, models.SubmissionPending)

	events, err := store.Query(ctx, audit.QueryFilter{
		Category:  audit.CategoryCompliance,
		EventType: audit.EventSubmissionStatusChanged,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Details["to"] != string(models.SubmissionApproved) {
		t.Errorf("to: got %q, want approved", events[0].Details["to"])
	}
}
