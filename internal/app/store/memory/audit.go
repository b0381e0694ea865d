package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit collects audit events in memory. It satisfies the audit logger's
// writer contract and the audit query API.
type Audit struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewAudit() *Audit { return &Audit{} }

func (a *Audit) Log(ctx context.Context, event audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	a.events = append(a.events, event)
	return nil
}

// Events returns recorded events of the given type, oldest first. An empty
// eventType returns everything.
func (a *Audit) Events(eventType string) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if eventType == "" || e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func matches(e audit.Event, f audit.QueryFilter) bool {
	switch {
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.EventType != "" && e.EventType != f.EventType:
		return false
	case f.StandardNumber > 0 && e.StandardNumber != f.StandardNumber:
		return false
	case f.InitiativeID != nil && (e.InitiativeID == nil || *e.InitiativeID != *f.InitiativeID):
		return false
	case f.VolunteerID != nil && (e.VolunteerID == nil || *e.VolunteerID != *f.VolunteerID):
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	}
	return true
}

// Query mirrors the Mongo audit store: newest first, default limit 100.
func (a *Audit) Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	a.mu.Lock()
	var out []audit.Event
	for _, e := range a.events {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if f.Offset >= int64(len(out)) {
		return nil, nil
	}
	out = out[f.Offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Audit) CountByFilter(ctx context.Context, f audit.QueryFilter) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for _, e := range a.events {
		if matches(e, f) {
			n++
		}
	}
	return n, nil
}

func (a *Audit) GetInconsistencies(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error) {
	return a.Query(ctx, audit.QueryFilter{
		Category:  audit.CategoryEnrollment,
		EventType: audit.EventEnrollmentInconsistency,
		StartTime: &since,
		Limit:     limit,
	})
}
