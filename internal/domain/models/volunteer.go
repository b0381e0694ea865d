// internal/domain/models/volunteer.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VolunteerMembership is the volunteer-side half of an enrollment.
type VolunteerMembership struct {
	Initiative primitive.ObjectID `bson:"initiative" json:"initiative"`
	JoinedAt   time.Time          `bson:"joined_at" json:"joined_at"`
}

// Volunteer is a person who can enroll in initiatives.
//
// Every entry in Initiatives should be mirrored by a RosterEntry on the
// referenced Initiative (and vice versa). Storage does not enforce this;
// the enrollment manager keeps it at mutation time and the reconciler
// repairs drift.
type Volunteer struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"full_name" json:"full_name"`
	Email    string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone    string             `bson:"phone,omitempty" json:"phone,omitempty"`

	Initiatives []VolunteerMembership `bson:"initiatives" json:"initiatives"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MembershipIndex returns the index of the entry for initiativeID, or -1.
func (v *Volunteer) MembershipIndex(initiativeID primitive.ObjectID) int {
	for idx, m := range v.Initiatives {
		if m.Initiative == initiativeID {
			return idx
		}
	}
	return -1
}
