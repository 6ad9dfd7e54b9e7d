package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/config"
	"github.com/zmanup/invoicing-api/internal/http/handler"
	"github.com/zmanup/invoicing-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/zmanup/invoicing-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health     *handler.HealthHandler
	Document   *handler.DocumentHandler
	Allocation *handler.AllocationHandler
	Client     *handler.ClientHandler
	Service    *handler.ServiceHandler
	User       *handler.UserHandler
	Audit      *handler.AuditHandler
	Report     *handler.ReportHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := rt.handlers

	// Global middleware
	r.Use(middleware.RequestMeta)
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	r.Get("/health", h.Health.Live)
	r.Get("/health/db", h.Health.Database)
	r.Get("/health/ready", h.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(middleware.CaptureUser)
		r.Use(rt.rateLimiter.Limit)

		// Operator endpoints, reachable with the API key alone
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireAdmin)
			r.Get("/admin/users", h.User.List)
			r.Post("/admin/users", h.User.Create)
		})

		r.Get("/audit", h.Audit.List)

		// Everything below acts on behalf of one business owner
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireUser)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.User.Me)
				r.Get("/numbering", h.User.Numbering)
				r.Put("/numbering", h.User.UpdateNumbering)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", h.Document.List)
				r.Post("/", h.Document.Create)
				r.Get("/types", h.Document.Types)
				r.Get("/{id}", h.Document.GetByID)
				r.Post("/{id}/cancel", h.Document.Cancel)
				r.Put("/{id}/status", h.Document.UpdateStatus)
				r.Get("/{id}/pdf", h.Document.DownloadPDF)
				r.Post("/{id}/allocation", h.Allocation.Request)
				r.Get("/{id}/allocation", h.Allocation.Status)
			})

			r.Get("/allocations", h.Allocation.History)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.Client.List)
				r.Post("/", h.Client.Create)
				r.Get("/{id}", h.Client.GetByID)
				r.Put("/{id}", h.Client.Update)
			})

			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.Service.List)
				r.Post("/", h.Service.Create)
				r.Get("/{id}", h.Service.GetByID)
				r.Put("/{id}", h.Service.Update)
			})

			r.Get("/reports/{kind}", h.Report.Download)
		})
	})

	return r
}
