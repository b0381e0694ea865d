// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"github.com/dalemusser/compliancehub/internal/app/system/paging"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseFilter reads the list filters from the query string.
func parseFilter(r *http.Request) (audit.QueryFilter, int, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     paging.LimitPlusOne(),
	}

	page := paging.ParsePage(r)
	filter.Offset = paging.Offset(page)

	if s := q.Get("standard"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return filter, 0, errs.Invalid("standard must be a positive integer")
		}
		filter.StandardNumber = n
	}
	for param, dst := range map[string]**primitive.ObjectID{
		"initiative_id": &filter.InitiativeID,
		"volunteer_id":  &filter.VolunteerID,
	} {
		if s := q.Get(param); s != "" {
			id, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				return filter, 0, errs.Invalid("%s is not an object id", param)
			}
			*dst = &id
		}
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, 0, errs.Invalid("start_date must be YYYY-MM-DD")
		}
		filter.StartTime = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, 0, errs.Invalid("end_date must be YYYY-MM-DD")
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	return filter, page, nil
}

// ServeList handles GET /admin/audit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, errs.Storage("query audit events", err))
		return
	}
	hasNext := paging.Trim(&events)
	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, errs.Storage("count audit events", err))
		return
	}

	totalPages := int((total + paging.PageSize - 1) / paging.PageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{
		Events:     toItems(events),
		Page:       page,
		TotalPages: totalPages,
		Range:      paging.ComputeRange(page, len(events), hasNext),
		Total:      total,
	})
}

// ServeInconsistencies handles GET /admin/audit/inconsistencies.
// "since" is a Go duration looking back from now; default 24h.
func (h *Handler) ServeInconsistencies(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			h.ErrLog.Write(w, r, errs.Invalid("since must be a positive duration"))
			return
		}
		window = d
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit inconsistencies")
	defer cancel()

	events, err := h.Store.GetInconsistencies(ctx, time.Now().UTC().Add(-window), paging.PageSize)
	if err != nil {
		h.ErrLog.Write(w, r, errs.Storage("query inconsistencies", err))
		return
	}
	errorsfeature.JSON(w, http.StatusOK, map[string]any{"events": toItems(events)})
}
