// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/compliancehub/internal/app/system/seed"
	"github.com/dalemusser/compliancehub/internal/app/system/tasks"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built:
//  1. upsert the standards seed file, if configured
//  2. re-derive every standard so cached statuses match the submissions
//  3. start the background jobs
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc := deps.Services

	if appCfg.StandardsSeedFile != "" {
		f, err := seed.Load(appCfg.StandardsSeedFile)
		if err != nil {
			logger.Error("load standards seed failed",
				zap.String("file", appCfg.StandardsSeedFile),
				zap.Error(err))
			return err
		}
		sctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
		res, err := seed.Apply(sctx, deps.Standards, f, logger)
		cancel()
		if err != nil {
			return err
		}
		logger.Info("standards seeded",
			zap.String("file", appCfg.StandardsSeedFile),
			zap.Int("inserted", res.Inserted),
			zap.Int("updated", res.Updated))
	}

	if appCfg.DeriveOnStartup {
		dctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
		res, err := svc.Derivation.DeriveAll(dctx, 0)
		cancel()
		if err != nil {
			logger.Error("startup derivation failed", zap.Error(err))
			return err
		}
		logger.Info("standards derived at startup",
			zap.Int("derived", res.Derived),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}

	gauge := tasks.StandardsGaugeJob(deps.Counts, svc.Metrics, appCfg.MetricsInterval)
	gctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	if err := gauge.Run(gctx); err != nil {
		logger.Warn("initial standards gauge refresh failed", zap.Error(err))
	}
	cancel()

	svc.Scheduler = workers.NewScheduler(logger, timeouts.Batch(),
		tasks.ReconcileJob(svc.Reconciler, logger, appCfg.ReconcileInterval),
		gauge,
	)
	svc.Scheduler.Start()
	return nil
}
