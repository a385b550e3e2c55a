// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/version"
)

// Route paths.
const (
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	RouteMetrics     = "/metrics"
	RouteLogin       = "/login"
	RouteLogout      = "/logout"
	RouteAPI         = "/api"

	RouteDocuments         = "/documents"
	RouteDocumentsSearch   = "/documents/search"
	RouteDocumentsID       = "/documents/{id}"
	RouteDocumentsDownload = "/documents/{id}/download"
	RouteProfile           = "/profile"
	RouteDepartments       = "/departments"
	RouteDepartmentsID     = "/departments/{id}"

	RouteAdmin     = "/admin"
	RouteDashboard = "/dashboard"
	RouteUsers     = "/users"
	RouteUsersID   = "/users/{id}"
	RouteEvents    = "/events"
)

// Services are the application services the routes call into.
type Services struct {
	Auth        *service.AuthService
	Documents   *service.DocumentService
	Users       *service.UserService
	Departments *service.DepartmentService
	Dashboard   *service.DashboardService
	Events      *service.EventService
}

// RouterConfig wires the router. Metrics, LoginProtection and RateLimiter
// are optional.
type RouterConfig struct {
	DB         *sql.DB
	Sessions   *scs.SessionManager
	Blobs      blob.Store
	UploadsDir string
	Version    version.Info
	Services   Services

	Metrics         *metrics.Metrics
	LoginProtection *middleware.LoginProtection
	RateLimiter     *middleware.GlobalRateLimiter
	Security        middleware.SecurityHeadersConfig
	CSRF            middleware.CSRFConfig
	RequestTimeout  time.Duration
	// TransferTimeout bounds uploads and downloads, which are exempt from
	// RequestTimeout.
	TransferTimeout time.Duration
	AccessLog       bool
}

// NewRouter builds the HTTP routes of the portal.
func NewRouter(cfg RouterConfig) http.Handler {
	svc := cfg.Services
	sm := cfg.Sessions

	healthHandler := NewHealthHandler(cfg.DB, sm, cfg.Blobs, cfg.UploadsDir, cfg.Version)
	authHandler := NewAuthHandler(sm, svc.Auth, svc.Events, cfg.LoginProtection)
	documentsHandler := NewDocumentsHandler(svc.Documents)
	profileHandler := NewProfileHandler(svc.Users)
	departmentsHandler := NewDepartmentsHandler(svc.Departments)
	adminHandler := NewAdminHandler(svc.Dashboard, svc.Users, svc.Events)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transfer := cfg.TransferTimeout
	if transfer <= 0 {
		transfer = 10 * time.Minute
	}
	bounded := middleware.Timeout(timeout)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.AccessLog {
		r.Use(chimw.Logger)
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(cfg.Security))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}
	r.Use(sm.LoadAndSave)

	r.Group(func(r chi.Router) {
		r.Use(bounded)
		r.Get(RouteHealth, healthHandler.Health)
		r.Get(RouteHealthLive, healthHandler.Liveness)
		r.Get(RouteHealthReady, healthHandler.Readiness)
		if cfg.Metrics != nil {
			r.Handle(RouteMetrics, cfg.Metrics.Handler())
		}
	})

	csrfMiddleware := middleware.CSRF(cfg.CSRF)

	r.Group(func(r chi.Router) {
		r.Use(bounded)
		r.Use(csrfMiddleware)
		if cfg.LoginProtection != nil {
			r.With(cfg.LoginProtection.Middleware()).Post(RouteLogin, authHandler.Login)
		} else {
			r.Post(RouteLogin, authHandler.Login)
		}
		r.Post(RouteLogout, authHandler.Logout)
	})

	r.Route(RouteAPI, func(r chi.Router) {
		r.Use(csrfMiddleware)
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, cfg.DB))

		// Document bodies can take longer than any request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.TransferDeadline(transfer))
			r.Post(RouteDocuments, documentsHandler.Create)
			r.Put(RouteDocumentsID, documentsHandler.Update)
			r.Post(RouteDocumentsID, documentsHandler.Update) // HTML forms can't send PUT
			r.Get(RouteDocumentsDownload, documentsHandler.Download)
		})

		r.Group(func(r chi.Router) {
			r.Use(bounded)

			r.Get(RouteDocuments, documentsHandler.List)
			r.Get(RouteDocumentsSearch, documentsHandler.List)
			r.Get(RouteDocumentsID, documentsHandler.Get)
			r.Delete(RouteDocumentsID, documentsHandler.Delete)

			r.Get(RouteProfile, profileHandler.Get)
			r.Put(RouteProfile, profileHandler.Update)

			r.Get(RouteDepartments, departmentsHandler.List)

			r.Route(RouteAdmin, func(r chi.Router) {
				r.Use(middleware.RequireAdmin(svc.Events, cfg.Metrics))

				r.Get(RouteDashboard, adminHandler.Dashboard)

				r.Get(RouteUsers, adminHandler.ListUsers)
				r.Post(RouteUsers, adminHandler.CreateUser)
				r.Get(RouteUsersID, adminHandler.GetUser)
				r.Put(RouteUsersID, adminHandler.UpdateUser)
				r.Delete(RouteUsersID, adminHandler.DeleteUser)

				r.Get(RouteDepartments, departmentsHandler.List)
				r.Post(RouteDepartments, departmentsHandler.Create)
				r.Get(RouteDepartmentsID, departmentsHandler.Get)
				r.Put(RouteDepartmentsID, departmentsHandler.Update)
				r.Delete(RouteDepartmentsID, departmentsHandler.Delete)

				r.Get(RouteEvents, adminHandler.Events)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	return r
}
