package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/compliancehub/internal/app/features/health"
	memstore "github.com/dalemusser/compliancehub/internal/app/store/memory"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/dalemusser/compliancehub/internal/testutil"
	"go.uber.org/zap"
)

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error"`
	Records  *struct {
		Standards  int64 `json:"standards"`
		Volunteers int64 `json:"volunteers"`
	} `json:"records"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := health.NewHandler(health.MongoPinger(db.Client()), nil, zap.NewNop())

	rec, body := serve(t, handler)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	if body.Status != "ok" || body.Database != "connected" {
		t.Errorf("got status=%q database=%q", body.Status, body.Database)
	}
	if body.Records != nil {
		t.Error("records should be omitted without a counter")
	}
}

func TestServe_ReportsCounts(t *testing.T) {
	mem := memstore.NewDB()
	mem.Standards().Put(testStandard(1))
	mem.Standards().Put(testStandard(2))

	ok := health.PingFunc(func(context.Context) error { return nil })
	_, body := serve(t, health.NewHandler(ok, mem, zap.NewNop()))

	if body.Records == nil {
		t.Fatal("expected records")
	}
	if body.Records.Standards != 2 || body.Records.Volunteers != 0 {
		t.Errorf("records: got %+v", *body.Records)
	}
}

func TestServe_DatabaseDown(t *testing.T) {
	down := health.PingFunc(func(context.Context) error { return errors.New("no reachable servers") })
	rec, body := serve(t, health.NewHandler(down, memstore.NewDB(), zap.NewNop()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
	if body.Status != "error" || body.Database != "disconnected" {
		t.Errorf("got status=%q database=%q", body.Status, body.Database)
	}
	if body.Error != "no reachable servers" {
		t.Errorf("error: got %q", body.Error)
	}
	if body.Records != nil {
		t.Error("records should not be reported when the store is down")
	}
}

func testStandard(n int) models.Standard {
	return models.Standard{Number: n, Status: models.StandardDidntSubmit}
}
