package tasks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/tasks"
	"go.uber.org/zap"
)

type stubReconciler struct {
	rep enrollment.Report
	err error
}

func (s stubReconciler) Run(ctx context.Context) (enrollment.Report, error) { return s.rep, s.err }

type stubCounter map[string]int64

func (s stubCounter) StandardsByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil {
		return nil, errors.New("unavailable")
	}
	return s, nil
}

type recordingGauge struct{ got map[string]int64 }

func (g *recordingGauge) SetStandardsByStatus(counts map[string]int64) { g.got = counts }

func TestReconcileJob(t *testing.T) {
	job := tasks.ReconcileJob(stubReconciler{rep: enrollment.Report{Repairs: map[string]int{"stale_count": 2}}}, zap.NewNop(), 0)
	if job.Name != "enrollment-reconcile" {
		t.Errorf("Name: got %q", job.Name)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	failing := tasks.ReconcileJob(stubReconciler{err: errors.New("list failed")}, zap.NewNop(), 0)
	if err := failing.Run(context.Background()); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestStandardsGaugeJob(t *testing.T) {
	g := &recordingGauge{}
	job := tasks.StandardsGaugeJob(stubCounter{"approved": 3}, g, 0)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.got["approved"] != 3 {
		t.Errorf("gauge: got %v", g.got)
	}

	g = &recordingGauge{}
	job = tasks.StandardsGaugeJob(stubCounter(nil), g, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Error("expected error")
	}
	if g.got != nil {
		t.Error("gauge should not be set on error")
	}
}
