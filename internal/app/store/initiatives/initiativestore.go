// internal/app/store/initiatives/initiativestore.go
package initiativestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	errMissingTitle = errors.New("initiative title is required")
	errBadCapacity  = errors.New("max_volunteers must be positive")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("initiatives")}
}

// Create inserts a new initiative. Status defaults to gathering_volunteers.
func (s *Store) Create(ctx context.Context, in models.Initiative) (models.Initiative, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Initiative{}, errMissingTitle
	}
	if in.MaxVolunteers <= 0 {
		return models.Initiative{}, errBadCapacity
	}
	now := time.Now().UTC()
	in.ID = primitive.NewObjectID()
	if in.Status == "" {
		in.Status = models.InitiativeGathering
	}
	if in.Volunteers == nil {
		in.Volunteers = []models.RosterEntry{}
	}
	in.CurrentVolunteers = len(in.Volunteers)
	in.CreatedAt = now
	in.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, in); err != nil {
		return models.Initiative{}, err
	}
	return in, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Initiative, error) {
	var in models.Initiative
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&in); err != nil {
		return models.Initiative{}, err
	}
	return in, nil
}

// SaveRoster replaces the roster and recomputes current_volunteers.
func (s *Store) SaveRoster(ctx context.Context, id primitive.ObjectID, roster []models.RosterEntry) error {
	if roster == nil {
		roster = []models.RosterEntry{}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"volunteers":         roster,
		"current_volunteers": len(roster),
		"updated_at":         time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetStatus writes the lifecycle status. Transition rules are enforced by
// the caller.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status models.InitiativeStatus) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// List returns every initiative ordered by _id.
func (s *Store) List(ctx context.Context) ([]models.Initiative, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Initiative
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
