package metricsstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of record totals reported by the health endpoint.
type Counts struct {
	Standards   int64 `json:"standards"`
	Submissions int64 `json:"submissions"`
	Initiatives int64 `json:"initiatives"`
	Volunteers  int64 `json:"volunteers"`
}

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// FetchCounts returns the high-level record totals.
// Intentionally tolerant: on error it returns 0 for that counter.
func (s *Store) FetchCounts(ctx context.Context) Counts {
	var out Counts
	for coll, dst := range map[string]*int64{
		"standards":   &out.Standards,
		"submissions": &out.Submissions,
		"initiatives": &out.Initiatives,
		"volunteers":  &out.Volunteers,
	} {
		if n, err := s.db.Collection(coll).EstimatedDocumentCount(ctx); err == nil {
			*dst = n
		}
	}
	return out
}

// StandardsByStatus returns the number of standards per derived status.
// Statuses with no standards are absent from the map.
func (s *Store) StandardsByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.db.Collection("standards").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			N      int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}
