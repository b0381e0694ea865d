// internal/app/store/volunteers/volunteerstore.go
package volunteerstore

import (
	"context"
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

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("volunteers")}
}

func (s *Store) Create(ctx context.Context, v models.Volunteer) (models.Volunteer, error) {
	now := time.Now().UTC()
	v.ID = primitive.NewObjectID()
	if v.Initiatives == nil {
		v.Initiatives = []models.VolunteerMembership{}
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, v); err != nil {
		return models.Volunteer{}, err
	}
	return v, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Volunteer, error) {
	var v models.Volunteer
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return models.Volunteer{}, err
	}
	return v, nil
}

// SaveInitiatives replaces the volunteer's membership list.
func (s *Store) SaveInitiatives(ctx context.Context, id primitive.ObjectID, entries []models.VolunteerMembership) error {
	if entries == nil {
		entries = []models.VolunteerMembership{}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"initiatives": entries,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// List returns every volunteer ordered by _id.
func (s *Store) List(ctx context.Context) ([]models.Volunteer, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Volunteer
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
