// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Reconciler runs one enrollment reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (enrollment.Report, error)
}

// StatusCounter counts standards per derived status.
type StatusCounter interface {
	StandardsByStatus(ctx context.Context) (map[string]int64, error)
}

// GaugeSetter receives the standards-by-status counts.
type GaugeSetter interface {
	SetStandardsByStatus(counts map[string]int64)
}

// ReconcileJob creates a job that repairs one-sided enrollment references.
func ReconcileJob(rec Reconciler, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "enrollment-reconcile",
		Interval: interval,
		Run: func(ctx context.Context) error {
			rep, err := rec.Run(ctx)
			if err != nil {
				return err
			}
			if rep.Total() > 0 {
				logger.Info("enrollment references repaired",
					zap.Int("repairs", rep.Total()),
					zap.Any("by_kind", rep.Repairs))
			}
			return nil
		},
	}
}

// StandardsGaugeJob creates a job that refreshes the standards-by-status gauge.
func StandardsGaugeJob(counter StatusCounter, gauge GaugeSetter, interval time.Duration) Job {
	return Job{
		Name:     "standards-gauge",
		Interval: interval,
		Run: func(ctx context.Context) error {
			counts, err := counter.StandardsByStatus(ctx)
			if err != nil {
				return err
			}
			gauge.SetStandardsByStatus(counts)
			return nil
		},
	}
}
