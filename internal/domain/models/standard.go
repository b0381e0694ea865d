// internal/domain/models/standard.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StandardStatus is the derived compliance classification of a Standard.
type StandardStatus string

// Canonical standard statuses. Stored in Standard.Status.
const (
	StandardApproved        StandardStatus = "approved"
	StandardRejected        StandardStatus = "rejected"
	StandardPendingApproval StandardStatus = "pending_approval"
	StandardDidntSubmit     StandardStatus = "didnt_submit"
)

// Valid reports whether s is one of the canonical standard statuses.
func (s StandardStatus) Valid() bool {
	switch s {
	case StandardApproved, StandardRejected, StandardPendingApproval, StandardDidntSubmit:
		return true
	}
	return false
}

// Standard is a numbered compliance requirement with one or more
// responsible agencies.
//
// NOTE:
//   - Status and Progress are caches of the submissions filed by
//     AssignedAgencies for Number. They are written only by the
//     derivation engine; nothing else should author them.
//   - Standards are seeded at program setup and never deleted.
type Standard struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number      int                `bson:"number" json:"number"`
	Title       string             `bson:"title,omitempty" json:"title,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	AssignedAgencies []primitive.ObjectID `bson:"assigned_agencies" json:"assigned_agencies"`

	Status   StandardStatus `bson:"status" json:"status"`
	Progress int            `bson:"progress" json:"progress"` // 0..100

	DerivedAt *time.Time `bson:"derived_at,omitempty" json:"derived_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsAssigned reports whether agencyID is responsible for this standard.
func (s *Standard) IsAssigned(agencyID primitive.ObjectID) bool {
	for _, a := range s.AssignedAgencies {
		if a == agencyID {
			return true
		}
	}
	return false
}
