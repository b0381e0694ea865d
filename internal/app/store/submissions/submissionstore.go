// internal/app/store/submissions/submissionstore.go
package submissionstore

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
	return &Store{c: db.Collection("submissions")}
}

// Create inserts a new submission, assigning ID and timestamps. Status
// defaults to pending.
func (s *Store) Create(ctx context.Context, sub models.Submission) (models.Submission, error) {
	now := time.Now().UTC()
	sub.ID = primitive.NewObjectID()
	if sub.Status == "" {
		sub.Status = models.SubmissionPending
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Submission, error) {
	var sub models.Submission
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// UpdateStatus sets the review status and returns the updated document.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus, comment string) (models.Submission, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":      status,
		"reviewed_at": now,
		"updated_at":  now,
	}
	if comment != "" {
		set["reviewer_comment"] = comment
	}
	return s.findOneAndSet(ctx, id, set)
}

// UpdateContent applies the non-nil fields of patch and returns the
// updated document.
func (s *Store) UpdateContent(ctx context.Context, id primitive.ObjectID, patch models.SubmissionPatch) (models.Submission, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Notes != nil {
		set["notes"] = *patch.Notes
	}
	return s.findOneAndSet(ctx, id, set)
}

// AddAttachments appends permanent attachment URLs.
func (s *Store) AddAttachments(ctx context.Context, id primitive.ObjectID, urls []string) (models.Submission, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var sub models.Submission
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"attachments": bson.M{"$each": urls}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}, opts).Decode(&sub)
	if err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

func (s *Store) findOneAndSet(ctx context.Context, id primitive.ObjectID, set bson.M) (models.Submission, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var sub models.Submission
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&sub); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// Delete removes a submission. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// FindForStandard returns the submissions filed against number by any of
// the given agencies. Submissions from other agencies are not returned.
func (s *Store) FindForStandard(ctx context.Context, number int, agencies []primitive.ObjectID) ([]models.Submission, error) {
	if len(agencies) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"standard_number": number,
		"agency":          bson.M{"$in": agencies},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Submission
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAgency returns an agency's submissions, newest first.
func (s *Store) ListByAgency(ctx context.Context, agency primitive.ObjectID) ([]models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"agency": agency}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Submission
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
