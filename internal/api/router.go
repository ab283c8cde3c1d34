package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/livetranslate/internal/api/handlers"
	"github.com/nikhilbhutani/livetranslate/internal/api/middleware"
	"github.com/nikhilbhutani/livetranslate/internal/auth"
	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
	"github.com/nikhilbhutani/livetranslate/internal/session"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

// Deps are the services the router serves. DB, Redis and Usage are
// optional.
type Deps struct {
	Config     *config.Config
	DB         handlers.Pinger
	Redis      *redis.Client
	Models     modelstore.Provider
	Translator translation.Translator
	Usage      handlers.UsageSummarizer
	Logger     *slog.Logger
}

type Router struct {
	mux    *chi.Mux
	deps   Deps
	jwt    *auth.JWTMiddleware
	apikey *auth.APIKeyMiddleware
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg := deps.Config
	return &Router{
		mux:    chi.NewRouter(),
		deps:   deps,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		apikey: auth.NewAPIKeyMiddleware(cfg.Auth.APIKeyHeader, cfg.Auth.APIKeys),
	}
}

func (rt *Router) authEnabled() bool {
	return rt.deps.Config.Auth.JWTSecret != "" || len(rt.deps.Config.Auth.APIKeys) > 0
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.deps.Config

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	modelH := handlers.NewModelHandler(rt.deps.Models, cfg.Translation.ActiveModelID)
	translateH := handlers.NewTranslateHandler(handlers.TranslateConfig{
		Translator:     rt.deps.Translator,
		Models:         rt.deps.Models,
		ModelID:        cfg.Translation.ActiveModelID,
		SourceLanguage: cfg.Translation.SourceLanguage,
		TargetLanguage: cfg.Translation.TargetLanguage,
		Timeout:        cfg.Translation.RequestTimeout,
	})
	sessionH := handlers.NewSessionHandler(session.Options{
		Translator:        rt.deps.Translator,
		Models:            rt.deps.Models,
		ModelID:           cfg.Translation.ActiveModelID,
		SourceLanguage:    cfg.Translation.SourceLanguage,
		TargetLanguage:    cfg.Translation.TargetLanguage,
		RecognitionLocale: cfg.Translation.RecognitionLocale,
		Debounce:          cfg.Translation.DebounceDelay,
		Timeout:           cfg.Translation.RequestTimeout,
		DisplayLimit:      cfg.Session.DisplayLimit,
		Logger:            rt.deps.Logger,
	}, cfg.Server.AllowedOrigins)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth: try API key first, then JWT
		if rt.authEnabled() {
			r.Use(rt.apikey.Authenticate)
			r.Use(rt.jwt.Authenticate)
		}

		r.Get("/models", modelH.List)

		r.With(chimiddleware.Timeout(cfg.Translation.RequestTimeout+5*time.Second)).
			Post("/translate", translateH.Translate)

		r.Get("/sessions/live", sessionH.Live)

		// Admin routes
		if rt.deps.Usage != nil {
			adminH := handlers.NewAdminHandler(rt.deps.Usage)
			r.Route("/admin", func(r chi.Router) {
				if rt.authEnabled() {
					r.Use(auth.RequireRole(auth.RoleAdmin))
				}
				r.Get("/usage", adminH.Usage)
			})
		}
	})

	return r
}
