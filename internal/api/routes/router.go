package routes

import (
	"net/http"

	"github.com/medleaf/pharmacy-backend/internal/api/handlers"
	"github.com/medleaf/pharmacy-backend/internal/api/middleware"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	prescriptionHandler *handlers.PrescriptionHandler
	verificationHandler *handlers.VerificationHandler
	workloadHandler     *handlers.WorkloadHandler
	analyticsHandler    *handlers.AnalyticsHandler

	auth            *middleware.Authorization
	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	prescriptionHandler *handlers.PrescriptionHandler,
	verificationHandler *handlers.VerificationHandler,
	workloadHandler *handlers.WorkloadHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	auth *middleware.Authorization,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		prescriptionHandler: prescriptionHandler,
		verificationHandler: verificationHandler,
		workloadHandler:     workloadHandler,
		analyticsHandler:    analyticsHandler,
		auth:                auth,
		cacheMiddleware:     cacheMiddleware,
		metrics:             metrics,
	}
}

// guard applies the capability check when authorization is configured
func (r *Router) guard(action providers.Action, next http.HandlerFunc) http.HandlerFunc {
	if r.auth == nil {
		return next
	}
	return r.auth.Require(action, next)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Liveness endpoint
	r.mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Prescription endpoints. Reads and the customer response stay open: record
	// ownership is enforced upstream with the rest of authentication.
	r.mux.HandleFunc("POST /api/prescriptions", r.guard(providers.ActionUploadPrescription, r.prescriptionHandler.Upload))
	r.mux.HandleFunc("GET /api/prescriptions", r.prescriptionHandler.List)
	r.mux.HandleFunc("GET /api/prescriptions/{id}", r.prescriptionHandler.Get)
	r.mux.HandleFunc("GET /api/prescriptions/{id}/history", r.prescriptionHandler.History)
	r.mux.HandleFunc("POST /api/prescriptions/{id}/response", r.prescriptionHandler.Respond)

	// Verification workflow endpoints
	r.mux.HandleFunc("POST /api/prescriptions/bulk-assign", r.guard(providers.ActionAssignPrescription, r.verificationHandler.BulkAssign))
	r.mux.HandleFunc("POST /api/prescriptions/{id}/assign", r.guard(providers.ActionAssignPrescription, r.verificationHandler.Assign))
	r.mux.HandleFunc("POST /api/prescriptions/{id}/decision", r.guard(providers.ActionDecidePrescription, r.verificationHandler.Decide))
	r.mux.HandleFunc("POST /api/prescriptions/{id}/clarification", r.guard(providers.ActionDecidePrescription, r.verificationHandler.RequestClarification))
	r.mux.HandleFunc("POST /api/prescriptions/{id}/reassign", r.guard(providers.ActionAssignPrescription, r.verificationHandler.Reassign))

	// Verifier endpoints
	r.mux.HandleFunc("POST /api/verifiers", r.guard(providers.ActionProvisionVerifier, r.workloadHandler.Provision))
	r.mux.HandleFunc("GET /api/verifiers", r.guard(providers.ActionViewAnalytics, r.workloadHandler.ListWorkloads))
	r.mux.HandleFunc("GET /api/verifiers/{id}/workload", r.guard(providers.ActionViewAnalytics, r.workloadHandler.GetWorkload))
	r.mux.HandleFunc("PUT /api/verifiers/{id}/availability", r.guard(providers.ActionManageAvailability, r.workloadHandler.SetAvailability))
	r.mux.HandleFunc("POST /api/verifiers/{id}/reconcile", r.guard(providers.ActionManageAvailability, r.workloadHandler.Reconcile))
	r.mux.HandleFunc("GET /api/verifiers/{id}/stats", r.guard(providers.ActionViewAnalytics, r.analyticsHandler.VerifierStats))

	// Dashboard endpoints. Guarded outside the HTTP cache (below) so a cache
	// HIT cannot skip the capability check.
	r.mux.HandleFunc("GET /api/dashboard", r.analyticsHandler.Dashboard)
	r.mux.HandleFunc("GET /api/system/health", r.analyticsHandler.SystemHealth)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	// Capability check for the cached dashboard routes sits outside the cache
	if r.auth != nil {
		inner := handler
		guarded := r.auth.Require(providers.ActionViewAnalytics, inner.ServeHTTP)
		handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodGet && (req.URL.Path == "/api/dashboard" || req.URL.Path == "/api/system/health") {
				guarded(w, req)
				return
			}
			inner.ServeHTTP(w, req)
		})
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
