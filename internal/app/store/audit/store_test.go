package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"github.com/dalemusser/compliancehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	initiativeID := primitive.NewObjectID()
	volunteerID := primitive.NewObjectID()
	event := audit.Event{
		Category:     audit.CategoryEnrollment,
		EventType:    audit.EventVolunteerEnrolled,
		InitiativeID: &initiativeID,
		VolunteerID:  &volunteerID,
		Success:      true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{InitiativeID: &initiativeID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestStore_QueryByStandard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, n := range []int{1, 1, 2} {
		if err := store.Log(ctx, audit.Event{
			Category:       audit.CategoryCompliance,
			EventType:      audit.EventStandardDerived,
			StandardNumber: n,
			Success:        true,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	count, err := store.CountByFilter(ctx, audit.QueryFilter{StandardNumber: 1})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count for standard 1: got %d, want 2", count)
	}
}

func TestStore_GetInconsistencies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().UTC().Add(-48 * time.Hour)
	_ = store.Log(ctx, audit.Event{
		Timestamp: old,
		Category:  audit.CategoryEnrollment,
		EventType: audit.EventEnrollmentInconsistency,
	})
	_ = store.Log(ctx, audit.Event{
		Category:  audit.CategoryEnrollment,
		EventType: audit.EventEnrollmentInconsistency,
	})
	_ = store.Log(ctx, audit.Event{
		Category:  audit.CategoryEnrollment,
		EventType: audit.EventVolunteerEnrolled,
		Success:   true,
	})

	events, err := store.GetInconsistencies(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetInconsistencies failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 recent inconsistency, got %d", len(events))
	}
}
