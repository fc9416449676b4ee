package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/workpermit/internal/auth"
	"github.com/frahmantamala/workpermit/internal/authz"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/internal/obs"
	"github.com/frahmantamala/workpermit/internal/permit"
	"github.com/frahmantamala/workpermit/internal/transport/middleware"
	"github.com/frahmantamala/workpermit/internal/transport/openapi"
	"github.com/frahmantamala/workpermit/internal/transport/swagger"
)

const APIBasePath = "/api/v1"

type Handlers struct {
	Auth   *auth.Handler
	Grant  *grant.Handler
	Authz  *authz.Handler
	Permit *permit.Handler
}

type Options struct {
	AllowedOrigins string
	OpenAPIPath    string
	MetricsPath    string
	// Metrics is nil when metrics are disabled.
	Metrics *obs.Metrics
	// Contract is nil when request validation is disabled.
	Contract *openapi.Validator
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Instrument)
	}
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.Metrics != nil {
		router.Method(http.MethodGet, opts.MetricsPath, opts.Metrics.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.OpenAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route(APIBasePath, func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			if opts.Contract != nil {
				pr.Use(opts.Contract.Middleware)
			}

			pr.Get("/me", h.Auth.GetCurrentIdentity)

			pr.Route("/permits", func(er chi.Router) {
				er.Post("/", h.Permit.CreatePermit)
				er.Get("/", h.Permit.ListPermits)
				er.Get("/{id}", h.Permit.GetPermit)
				er.Delete("/{id}", h.Permit.DeletePermit)
				er.Post("/{id}/approve/{role}", h.Permit.ApprovePermit)

				er.Group(func(mr chi.Router) {
					mr.Use(h.Auth.RequireTenantManager)
					mr.Post("/{id}/reject", h.Permit.RejectPermit)
				})
			})

			pr.Get("/approvers/{role}", h.Authz.ListApprovers)
			pr.Get("/approvers/{role}/me", h.Authz.CheckApprover)

			pr.Route("/approval-grants", func(gr chi.Router) {
				gr.Get("/", h.Grant.ListGrants)

				gr.Group(func(mr chi.Router) {
					mr.Use(h.Auth.RequireTenantManager)
					mr.Post("/", h.Grant.CreateGrant)
					mr.Delete("/{id}", h.Grant.DeleteGrant)
				})
			})
		})
	})
}
