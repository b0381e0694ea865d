// internal/domain/models/initiative.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InitiativeStatus is the lifecycle state of an Initiative.
//
//	gathering_volunteers -> active -> completed
//	gathering_volunteers | active -> cancelled
type InitiativeStatus string

const (
	InitiativeGathering InitiativeStatus = "gathering_volunteers"
	InitiativeActive    InitiativeStatus = "active"
	InitiativeCompleted InitiativeStatus = "completed"
	InitiativeCancelled InitiativeStatus = "cancelled"
)

// Valid reports whether s is a known lifecycle state.
func (s InitiativeStatus) Valid() bool {
	switch s {
	case InitiativeGathering, InitiativeActive, InitiativeCompleted, InitiativeCancelled:
		return true
	}
	return false
}

// AcceptsVolunteers reports whether new enrollments are allowed in state s.
func (s InitiativeStatus) AcceptsVolunteers() bool {
	return s == InitiativeGathering || s == InitiativeActive
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s InitiativeStatus) CanTransitionTo(next InitiativeStatus) bool {
	switch s {
	case InitiativeGathering:
		return next == InitiativeActive || next == InitiativeCancelled
	case InitiativeActive:
		return next == InitiativeCompleted || next == InitiativeCancelled
	}
	return false
}

// VolunteerContact is an inline roster entry for someone who joined
// without a Volunteer record.
type VolunteerContact struct {
	FullName string `bson:"full_name" json:"full_name"`
	Email    string `bson:"email,omitempty" json:"email,omitempty"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// RosterEntry is one membership on an Initiative roster. Exactly one of
// Volunteer or Contact is set.
type RosterEntry struct {
	Volunteer *primitive.ObjectID `bson:"volunteer,omitempty" json:"volunteer,omitempty"`
	Contact   *VolunteerContact   `bson:"contact,omitempty" json:"contact,omitempty"`
	JoinedAt  time.Time           `bson:"joined_at" json:"joined_at"`
}

// References reports whether the entry points at volunteerID.
func (e RosterEntry) References(volunteerID primitive.ObjectID) bool {
	return e.Volunteer != nil && *e.Volunteer == volunteerID
}

// Initiative is a volunteer program with a capacity-limited roster.
//
// NOTE:
//   - CurrentVolunteers is a cache of len(Volunteers), rewritten on every
//     roster save.
//   - len(Volunteers) <= MaxVolunteers is checked at enroll time only.
type Initiative struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Status      InitiativeStatus   `bson:"status" json:"status"`

	MaxVolunteers     int           `bson:"max_volunteers" json:"max_volunteers"`
	Volunteers        []RosterEntry `bson:"volunteers" json:"volunteers"`
	CurrentVolunteers int           `bson:"current_volunteers" json:"current_volunteers"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RosterIndex returns the index of the roster entry for volunteerID, or -1.
func (i *Initiative) RosterIndex(volunteerID primitive.ObjectID) int {
	for idx, e := range i.Volunteers {
		if e.References(volunteerID) {
			return idx
		}
	}
	return -1
}

// IsFull reports whether the roster has reached MaxVolunteers.
func (i *Initiative) IsFull() bool {
	return len(i.Volunteers) >= i.MaxVolunteers
}
