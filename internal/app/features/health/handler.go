// internal/app/features/health/handler.go
package health

import (
	"context"
	"encoding/json"
	"net/http"

	metricsstore "github.com/dalemusser/compliancehub/internal/app/store/metrics"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// MongoPinger pings the primary of client.
func MongoPinger(client *mongo.Client) Pinger {
	return PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}

// Counter reports record totals.
type Counter interface {
	FetchCounts(ctx context.Context) metricsstore.Counts
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB     Pinger
	Counts Counter
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. counts may be nil.
func NewHandler(db Pinger, counts Counter, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Counts: counts,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string               `json:"status"`
	Database string               `json:"database"`
	Message  string               `json:"message,omitempty"`
	Error    string               `json:"error,omitempty"`
	Records  *metricsstore.Counts `json:"records,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "records":{"standards":12,...} }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.DB.Ping(ctx); err != nil {
		h.Log.Error("health-check: record store ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Counts != nil {
		counts := h.Counts.FetchCounts(ctx)
		resp.Records = &counts
	}

	_ = json.NewEncoder(w).Encode(resp)
}
