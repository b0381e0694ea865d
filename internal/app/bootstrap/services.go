// internal/app/bootstrap/services.go
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/attachments"
	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/derivation"
	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/metrics"
	"github.com/dalemusser/compliancehub/internal/app/system/ratelimit"
	"github.com/dalemusser/compliancehub/internal/app/system/submissions"
	"github.com/dalemusser/compliancehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Services are the long-lived components built on top of DBDeps.
type Services struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Audit    *auditlog.Logger

	Attachments *attachments.Store
	Derivation  *derivation.Engine
	Submissions *submissions.Manager
	Enrollment  *enrollment.Manager
	Reconciler  *enrollment.Reconciler

	ReconcileLimiter *ratelimit.Limiter

	// Scheduler is set by Startup.
	Scheduler *workers.Scheduler
}

func buildServices(ctx context.Context, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	al := auditlog.New(deps.Audit, logger, auditlog.Config{
		Compliance: appCfg.AuditLogCompliance,
		Enrollment: appCfg.AuditLogEnrollment,
	})

	attach, err := buildAttachments(ctx, appCfg, logger)
	if err != nil {
		return nil, err
	}

	engine := derivation.New(deps.Standards, deps.Submissions, logger,
		derivation.WithLocker(deps.Locker),
		derivation.WithAudit(al),
		derivation.WithMetrics(m))
	enroll := enrollment.New(deps.Initiatives, deps.Volunteers, deps.Locker, al, m, logger)

	return &Services{
		Registry:         reg,
		Metrics:          m,
		Audit:            al,
		Attachments:      attach,
		Derivation:       engine,
		Submissions:      submissions.New(deps.Submissions, deps.Standards, engine, attach, al, m, logger),
		Enrollment:       enroll,
		Reconciler:       enrollment.NewReconciler(enroll, deps.Initiatives, deps.Volunteers),
		ReconcileLimiter: ratelimit.New(appCfg.ReconcileRateLimit, time.Minute),
	}, nil
}

func buildAttachments(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*attachments.Store, error) {
	if appCfg.StorageType == "s3" {
		blob, err := storage.NewS3(ctx, storage.S3Config{
			Region:       appCfg.StorageS3Region,
			Bucket:       appCfg.StorageS3Bucket,
			Endpoint:     appCfg.StorageS3Endpoint,
			UsePathStyle: appCfg.StorageS3PathStyle,
			BaseURL:      strings.TrimSuffix(appCfg.StorageS3PublicURL, "/"),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 attachment storage: %w", err)
		}
		logger.Info("attachments stored in S3",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix))
		return attachments.New(blob, appCfg.StorageS3Prefix, logger), nil
	}

	blob, err := storage.NewLocal(storage.LocalConfig{
		BasePath: appCfg.StorageLocalPath,
		BaseURL:  appCfg.StorageLocalURL,
	})
	if err != nil {
		return nil, fmt.Errorf("local attachment storage: %w", err)
	}
	logger.Info("attachments stored on local disk",
		zap.String("path", appCfg.StorageLocalPath),
		zap.String("url", appCfg.StorageLocalURL))
	return attachments.New(blob, "", logger), nil
}

// servesLocalFiles reports whether attachments are on disk behind a path
// this app should serve.
func servesLocalFiles(appCfg AppConfig) bool {
	return appCfg.StorageType != "s3" && strings.HasPrefix(appCfg.StorageLocalURL, "/")
}
