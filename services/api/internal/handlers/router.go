package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"focusd/pkg/telemetry"
	"focusd/services/api/internal/activity"
	"focusd/services/api/internal/auth"
	"focusd/services/api/internal/export"
	"focusd/services/api/internal/focusmodes"
	"focusd/services/api/internal/sessions"
	"focusd/services/api/internal/settings"
	"focusd/services/api/internal/stats"
	"focusd/services/api/internal/tasks"
)

const defaultRateLimit = 100

// Options carries the services and HTTP settings the API is built from.
type Options struct {
	Auth       *auth.Service
	Tasks      *tasks.Service
	Sessions   *sessions.Service
	Settings   *settings.Service
	FocusModes *focusmodes.Service
	Stats      *stats.Service
	Exports    *export.Service
	Activity   *activity.Feed

	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error

	Logger             zerolog.Logger
	ServiceName        string
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// API wires the domain services into HTTP handlers.
type API struct {
	auth       *auth.Service
	tasks      *tasks.Service
	sessions   *sessions.Service
	settings   *settings.Service
	focusModes *focusmodes.Service
	stats      *stats.Service
	exports    *export.Service
	activity   *activity.Feed
	ready      func(ctx context.Context) error
	logger     zerolog.Logger
	opts       Options
}

// New validates opts and builds the API.
func New(opts Options) (*API, error) {
	switch {
	case opts.Auth == nil:
		return nil, errors.New("auth service is required")
	case opts.Tasks == nil:
		return nil, errors.New("task service is required")
	case opts.Sessions == nil:
		return nil, errors.New("session service is required")
	case opts.Settings == nil:
		return nil, errors.New("settings service is required")
	case opts.FocusModes == nil:
		return nil, errors.New("focus mode service is required")
	case opts.Stats == nil:
		return nil, errors.New("stats service is required")
	case opts.Exports == nil:
		return nil, errors.New("export service is required")
	case opts.Activity == nil:
		return nil, errors.New("activity feed is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "focusd"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = defaultRateLimit
	}

	return &API{
		auth:       opts.Auth,
		tasks:      opts.Tasks,
		sessions:   opts.Sessions,
		settings:   opts.Settings,
		focusModes: opts.FocusModes,
		stats:      opts.Stats,
		exports:    opts.Exports,
		activity:   opts.Activity,
		ready:      opts.Ready,
		logger:     opts.Logger,
		opts:       opts,
	}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(telemetry.Middleware(a.opts.ServiceName, a.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(a.opts.RateLimitPerMinute, time.Minute))

		r.Post("/auth/signup", a.handleSignup)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)

			r.Get("/auth/me", a.handleMe)

			r.Post("/sessions", a.handleRecordSession)
			r.Get("/sessions", a.handleListSessions)

			r.Post("/tasks", a.handleCreateTask)
			r.Get("/tasks", a.handleListTasks)
			r.Get("/tasks/{id}", a.handleGetTask)
			r.Patch("/tasks/{id}", a.handleUpdateTask)
			r.Delete("/tasks/{id}", a.handleDeleteTask)

			r.Get("/settings", a.handleGetSettings)
			r.Patch("/settings", a.handleUpdateSettings)

			r.Get("/focus-modes", a.handleListFocusModes)
			r.Post("/focus-modes", a.handleCreateFocusMode)
			r.Patch("/focus-modes/{id}", a.handleUpdateFocusMode)
			r.Delete("/focus-modes/{id}", a.handleDeleteFocusMode)

			r.Get("/stats", a.handleStats)
			r.Get("/stats/heatmap", a.handleHeatmap)
			r.Get("/stats/report", a.handleReport)

			r.Get("/activity", a.handleListActivity)
			r.Post("/exports", a.handleCreateExport)
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.ready(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("readiness check failed")
			respondError(w, http.StatusServiceUnavailable, errors.New("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
