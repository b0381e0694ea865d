// internal/app/store/standards/standardstore.go
package standardstore

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
	return &Store{c: db.Collection("standards")}
}

// GetByNumber returns the standard with the given number, or
// mongo.ErrNoDocuments.
func (s *Store) GetByNumber(ctx context.Context, number int) (models.Standard, error) {
	var st models.Standard
	if err := s.c.FindOne(ctx, bson.M{"number": number}).Decode(&st); err != nil {
		return models.Standard{}, err
	}
	return st, nil
}

// SetDerived writes the derived status and progress onto the standard.
// Only the derivation engine should call this.
func (s *Store) SetDerived(ctx context.Context, number int, status models.StandardStatus, progress int) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"number": number}, bson.M{"$set": bson.M{
		"status":     status,
		"progress":   progress,
		"derived_at": now,
		"updated_at": now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Numbers returns every standard number in ascending order.
func (s *Store) Numbers(ctx context.Context) ([]int, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}}).SetProjection(bson.M{"number": 1})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []int
	for cur.Next(ctx) {
		var row struct {
			Number int `bson:"number"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.Number)
	}
	return out, cur.Err()
}

// Upsert creates the standard if its number is new, or refreshes its
// title, description and assigned agencies if it exists. Status and
// progress are only initialised on insert; they stay derivation-owned.
// Returns true when a new document was inserted.
func (s *Store) Upsert(ctx context.Context, st models.Standard) (bool, error) {
	now := time.Now().UTC()
	agencies := st.AssignedAgencies
	if agencies == nil {
		agencies = []primitive.ObjectID{}
	}
	update := bson.M{
		"$set": bson.M{
			"title":             st.Title,
			"description":       st.Description,
			"assigned_agencies": agencies,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"number":     st.Number,
			"status":     models.StandardDidntSubmit,
			"progress":   0,
			"created_at": now,
		},
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"number": st.Number}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}
