package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParams adds chi URL parameters (key, value pairs) to the
// request context. Use this in handler tests that call a handler directly.
func WithChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewAgencyID returns a fresh agency identifier.
func NewAgencyID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("insert into %s: %v", coll, err)
	}
}

// CreateStandard creates a standard in didnt_submit with progress 0.
func (f *Fixtures) CreateStandard(ctx context.Context, number int, agencies ...primitive.ObjectID) models.Standard {
	f.t.Helper()
	now := time.Now().UTC()
	if agencies == nil {
		agencies = []primitive.ObjectID{}
	}
	st := models.Standard{
		ID:               primitive.NewObjectID(),
		Number:           number,
		Title:            "Standard",
		AssignedAgencies: agencies,
		Status:           models.StandardDidntSubmit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.insert(ctx, "standards", st)
	return st
}

// CreateSubmission creates a submission with the given review status.
func (f *Fixtures) CreateSubmission(ctx context.Context, number int, agency primitive.ObjectID, status models.SubmissionStatus) models.Submission {
	f.t.Helper()
	now := time.Now().UTC()
	sub := models.Submission{
		ID:             primitive.NewObjectID(),
		StandardNumber: number,
		Agency:         agency,
		Status:         status,
		Title:          "Evidence",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "submissions", sub)
	return sub
}

// CreateInitiative creates an initiative with an empty roster.
func (f *Fixtures) CreateInitiative(ctx context.Context, title string, status models.InitiativeStatus, max int) models.Initiative {
	f.t.Helper()
	now := time.Now().UTC()
	in := models.Initiative{
		ID:            primitive.NewObjectID(),
		Title:         title,
		Status:        status,
		MaxVolunteers: max,
		Volunteers:    []models.RosterEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.insert(ctx, "initiatives", in)
	return in
}

// CreateVolunteer creates a volunteer with no memberships.
func (f *Fixtures) CreateVolunteer(ctx context.Context, name string) models.Volunteer {
	f.t.Helper()
	now := time.Now().UTC()
	v := models.Volunteer{
		ID:          primitive.NewObjectID(),
		FullName:    name,
		Initiatives: []models.VolunteerMembership{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "volunteers", v)
	return v
}
