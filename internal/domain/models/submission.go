// internal/domain/models/submission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus is the review state of a single Submission.
type SubmissionStatus string

// Canonical submission statuses.
const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Valid reports whether s is one of the canonical submission statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// Submission is evidence of compliance filed by an agency against a
// standard. An agency may hold any number of submissions per standard;
// "has submitted" means at least one exists for (StandardNumber, Agency).
type Submission struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StandardNumber int                `bson:"standard_number" json:"standard_number"`
	Agency         primitive.ObjectID `bson:"agency" json:"agency"`

	Status SubmissionStatus `bson:"status" json:"status"`

	Title           string `bson:"title,omitempty" json:"title,omitempty"`
	Description     string `bson:"description,omitempty" json:"description,omitempty"`
	Notes           string `bson:"notes,omitempty" json:"notes,omitempty"`
	ReviewerComment string `bson:"reviewer_comment,omitempty" json:"reviewer_comment,omitempty"`

	Attachments []string `bson:"attachments,omitempty" json:"attachments,omitempty"` // permanent URLs

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
	ReviewedAt *time.Time `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
}

// SubmissionPatch carries the agency-editable content fields. Nil fields
// are left unchanged.
type SubmissionPatch struct {
	Title       *string
	Description *string
	Notes       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p SubmissionPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Notes == nil
}
