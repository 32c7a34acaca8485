package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"techtrack/internal/config"
	"techtrack/internal/handler"
	"techtrack/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Audit   *handler.AuditHandler
	Health  *handler.HealthHandler
	Docs    *handler.DocsHandler
	Metrics http.Handler
	// Activity streams bus events over a websocket.
	Activity http.HandlerFunc
}

type requestObserver interface {
	ObserveRequest(method string, route string, status int, elapsed time.Duration)
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, observer requestObserver, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(observer))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", h.Metrics)
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	r.Route("/api/v1", func(root chi.Router) {
		// Long-lived and hijacked, so it sits outside the request timeout.
		root.With(authMiddleware.RequireAuth, authMiddleware.RequireSuperuser).Get("/audit/stream", h.Activity)

		root.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
			mountAPI(api, authMiddleware, h)
		})
	})

	return r
}

func mountAPI(api chi.Router, authMiddleware *middleware.AuthMiddleware, h Handlers) {
	api.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", h.Auth.Login)
		auth.With(authMiddleware.RequireAuth).Post("/test-token", h.Auth.TestToken)
	})

	api.Route("/users", func(users chi.Router) {
		users.Post("/open", h.User.Register)

		users.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)

			authed.Get("/me", h.User.Me)
			authed.Put("/me", h.User.UpdateMe)
			authed.Get("/{id}", h.User.Get)

			authed.With(authMiddleware.RequireSuperuser).Get("/", h.User.List)
			authed.With(authMiddleware.RequireSuperuser).Post("/", h.User.Create)
			authed.With(authMiddleware.RequireSuperuser).Put("/{id}", h.User.Update)
			authed.With(authMiddleware.RequireSuperuser).Delete("/{id}", h.User.Delete)
		})
	})

	api.With(authMiddleware.RequireAuth, authMiddleware.RequireSuperuser).Get("/audit", h.Audit.List)
}
