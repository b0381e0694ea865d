// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"github.com/dalemusser/compliancehub/internal/app/system/paging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listItem struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Category       string            `json:"category"`
	EventType      string            `json:"event_type"`
	AgencyID       string            `json:"agency_id,omitempty"`
	StandardNumber int               `json:"standard_number,omitempty"`
	SubmissionID   string            `json:"submission_id,omitempty"`
	InitiativeID   string            `json:"initiative_id,omitempty"`
	VolunteerID    string            `json:"volunteer_id,omitempty"`
	Success        bool              `json:"success"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events     []listItem   `json:"events"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int64        `json:"total"`
	Range      paging.Range `json:"range"`
}

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

func toItems(events []audit.Event) []listItem {
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, listItem{
			ID:             e.ID.Hex(),
			Timestamp:      e.Timestamp,
			Category:       e.Category,
			EventType:      e.EventType,
			AgencyID:       hexOrEmpty(e.AgencyID),
			StandardNumber: e.StandardNumber,
			SubmissionID:   hexOrEmpty(e.SubmissionID),
			InitiativeID:   hexOrEmpty(e.InitiativeID),
			VolunteerID:    hexOrEmpty(e.VolunteerID),
			Success:        e.Success,
			FailureReason:  e.FailureReason,
			Details:        e.Details,
		})
	}
	return items
}
