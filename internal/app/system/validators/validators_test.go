package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/validators"
	"github.com/dalemusser/compliancehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"standards", "submissions", "initiatives", "volunteers", "audit_events"} {
		if !have[want] {
			t.Errorf("collection %q not created", want)
		}
	}
}

func TestStandardsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("standards")

	valid := bson.M{"number": 1, "assigned_agencies": bson.A{primitive.NewObjectID()}, "status": "didnt_submit", "progress": 0}
	if _, err := coll.InsertOne(ctx, valid); err != nil {
		t.Fatalf("valid standard rejected: %v", err)
	}

	cases := map[string]bson.M{
		"missing status":   {"number": 2, "assigned_agencies": bson.A{}, "progress": 0},
		"unknown status":   {"number": 3, "assigned_agencies": bson.A{}, "status": "done", "progress": 0},
		"progress too big": {"number": 4, "assigned_agencies": bson.A{}, "status": "approved", "progress": 101},
		"zero number":      {"number": 0, "assigned_agencies": bson.A{}, "status": "approved", "progress": 0},
	}
	for name, doc := range cases {
		if _, err := coll.InsertOne(ctx, doc); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestInitiativesValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("initiatives")

	roster := bson.A{bson.M{"volunteer": primitive.NewObjectID(), "joined_at": time.Now().UTC()}}
	valid := bson.M{"title": "Food drive", "status": "active", "max_volunteers": 3, "volunteers": roster, "current_volunteers": 1}
	if _, err := coll.InsertOne(ctx, valid); err != nil {
		t.Fatalf("valid initiative rejected: %v", err)
	}

	invalid := bson.M{"title": "Food drive", "status": "paused", "max_volunteers": 3, "volunteers": bson.A{}, "current_volunteers": 0}
	if _, err := coll.InsertOne(ctx, invalid); err == nil {
		t.Error("expected validation error for unknown status")
	}
	noCapacity := bson.M{"title": "Food drive", "status": "active", "max_volunteers": 0, "volunteers": bson.A{}, "current_volunteers": 0}
	if _, err := coll.InsertOne(ctx, noCapacity); err == nil {
		t.Error("expected validation error for zero capacity")
	}
}

func TestVolunteersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("volunteers")

	bad := bson.M{"full_name": "X", "initiatives": bson.A{bson.M{"initiative": "not-an-id", "joined_at": time.Now()}}}
	if _, err := coll.InsertOne(ctx, bad); err == nil {
		t.Error("expected validation error for string initiative reference")
	}
}
