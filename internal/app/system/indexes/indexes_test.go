package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/compliancehub/internal/app/system/indexes"
	"github.com/dalemusser/compliancehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"standards":    {"uniq_standards_number", "idx_standards_status"},
		"submissions":  {"idx_submissions_standard_agency", "idx_submissions_agency_created"},
		"initiatives":  {"idx_initiatives_status", "idx_initiatives_roster_volunteer"},
		"volunteers":   {"idx_volunteers_initiative"},
		"audit_events": {"idx_audit_category_ts", "idx_audit_event_ts", "idx_audit_initiative_ts"},
	}
	for coll, want := range expected {
		got := indexNames(t, ctx, db, coll)
		for _, name := range want {
			if !got[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("initiatives").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}},
		Options: options.Index().SetName("status_1_legacy"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, ctx, db, "initiatives")
	if got["status_1_legacy"] {
		t.Error("legacy index should have been replaced")
	}
	if !got["idx_initiatives_status"] {
		t.Error("expected idx_initiatives_status")
	}
}

func TestEnsureAll_UniqueStandardNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if _, err := db.Collection("standards").InsertOne(ctx, bson.M{"number": 7}); err != nil {
		t.Fatalf("Insert standard failed: %v", err)
	}
	if _, err := db.Collection("standards").InsertOne(ctx, bson.M{"number": 7}); err == nil {
		t.Error("expected duplicate key error for unique index on standards.number")
	}
}
