// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/compliancehub/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/compliancehub/internal/app/features/health"
	initiativesfeature "github.com/dalemusser/compliancehub/internal/app/features/initiatives"
	reconcilefeature "github.com/dalemusser/compliancehub/internal/app/features/reconcile"
	standardsfeature "github.com/dalemusser/compliancehub/internal/app/features/standards"
	submissionsfeature "github.com/dalemusser/compliancehub/internal/app/features/submissions"
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// Operational endpoints (/health, /metrics, local attachment files) are
// open. Everything else runs behind authz.Identify, which reads the caller
// identity asserted by the upstream gateway; /admin additionally requires
// the admin role.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.Ping, deps.Counts, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(svc.Registry, promhttp.HandlerOpts{}))

	if servesLocalFiles(appCfg) {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	r.Group(func(r chi.Router) {
		r.Use(authz.Identify)

		standardsHandler := standardsfeature.NewHandler(deps.Standards, svc.Derivation, errLog, logger)
		r.Mount("/standards", standardsfeature.Routes(standardsHandler))

		submissionsHandler := submissionsfeature.NewHandler(svc.Submissions, errLog, logger)
		r.Mount("/submissions", submissionsfeature.Routes(submissionsHandler))

		initiativesHandler := initiativesfeature.NewHandler(svc.Enrollment, errLog, logger)
		r.Mount("/initiatives", initiativesfeature.Routes(initiativesHandler))

		r.Route("/admin", func(r chi.Router) {
			r.Use(authz.RequireRole(authz.RoleAdmin))

			auditHandler := auditlogfeature.NewHandler(deps.Audit, errLog, logger)
			r.Mount("/audit", auditlogfeature.Routes(auditHandler))

			reconcileHandler := reconcilefeature.NewHandler(svc.Reconciler, errLog, logger)
			r.Mount("/reconcile", reconcilefeature.Routes(reconcileHandler, svc.ReconcileLimiter))
		})
	})

	return r, nil
}
