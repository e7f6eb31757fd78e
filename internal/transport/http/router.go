package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/handlers"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api/v1"; если пустой — роуты регистрируются на корне.
	Feed     handlers.FeedOptions
	// Ready — готовность для /healthz; nil означает «всегда готов».
	Ready func() bool
	// Checks — проверки зависимостей для /healthz (ping БД), каждая под CheckTimeout.
	Checks       map[string]func(ctx context.Context) error
	CheckTimeout time.Duration
}

// NewRouter собирает http.Handler с chi, middleware и роутами.
// /livez, /healthz и /metrics всегда на корне.
func NewRouter(svc handlers.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		for name, check := range opts.Checks {
			ctx, cancel := context.WithTimeout(r.Context(), opts.CheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				logger := opts.Logger
				if logger == nil {
					logger = slog.Default()
				}
				logger.Warn("health_check_failed", slog.String("check", name), slog.String("err", err.Error()))
				http.Error(w, "not ready: "+name, http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("/metrics", promhttp.Handler())

	v := validator.New()
	h := handlers.New(svc, v, opts.Feed)

	api := chi.NewRouter()
	// Middleware (внешний -> внутренний).
	api.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // request-scoped логгер в контексте
		middleware.Identity(v),          // X-User-* от шлюза
	)

	// WebSocket-ленте общий дедлайн не нужен.
	api.Get("/recipes/{recipe_id}/comments/live", h.LiveComments)

	api.Group(func(r chi.Router) {
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}
		registerRoutes(r, h)
	})

	if opts.BasePath != "" && opts.BasePath != "/" {
		root.Mount(opts.BasePath, api)
		return root
	}

	root.Mount("/", api)
	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// recipes
	r.Get("/recipes/{recipe_id}/comments", h.ListThreads)
	r.Post("/recipes/{recipe_id}/comments", h.CreateComment)
	r.Post("/recipes/{recipe_id}/rating/sync", h.SyncRating)

	// comments
	r.Get("/comments/{id}", h.GetComment)
	r.Get("/comments/{id}/replies", h.ListReplies)
	r.Patch("/comments/{id}", h.UpdateComment)
	r.Delete("/comments/{id}", h.DeleteComment)
}
