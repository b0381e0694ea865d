// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryCompliance = "compliance"
	CategoryEnrollment = "enrollment"
)

// Compliance event types
const (
	EventSubmissionCreated       = "submission_created"
	EventSubmissionUpdated       = "submission_updated"
	EventSubmissionStatusChanged = "submission_status_changed"
	EventSubmissionDeleted       = "submission_deleted"
	EventSubmissionRolledBack    = "submission_rolled_back"
	EventStandardDerived         = "standard_derived"
	EventDerivationFailed        = "derivation_failed"
)

// Enrollment event types
const (
	EventVolunteerEnrolled       = "volunteer_enrolled"
	EventVolunteerWithdrawn      = "volunteer_withdrawn"
	EventEnrollmentInconsistency = "enrollment_inconsistency"
	EventEnrollmentRepaired      = "enrollment_repaired"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	AgencyID *primitive.ObjectID `bson:"agency_id,omitempty"` // acting agency, when known

	// What
	StandardNumber int                 `bson:"standard_number,omitempty"`
	SubmissionID   *primitive.ObjectID `bson:"submission_id,omitempty"`
	InitiativeID   *primitive.ObjectID `bson:"initiative_id,omitempty"`
	VolunteerID    *primitive.ObjectID `bson:"volunteer_id,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Category       string
	EventType      string
	StandardNumber int
	InitiativeID   *primitive.ObjectID
	VolunteerID    *primitive.ObjectID
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int64
	Offset         int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.StandardNumber > 0 {
		query["standard_number"] = filter.StandardNumber
	}
	if filter.InitiativeID != nil {
		query["initiative_id"] = *filter.InitiativeID
	}
	if filter.VolunteerID != nil {
		query["volunteer_id"] = *filter.VolunteerID
	}

	// Time range
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetInconsistencies retrieves enrollment writes that left a one-sided
// reference behind and have not necessarily been repaired yet.
func (s *Store) GetInconsistencies(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		Category:  CategoryEnrollment,
		EventType: EventEnrollmentInconsistency,
		StartTime: &since,
		Limit:     limit,
	})
}
