package app

import (
	"net/http"
	"time"

	"github.com/nocdn/mcqsr/internal/app/observability"
	"github.com/nocdn/mcqsr/internal/explain"
	"github.com/nocdn/mcqsr/internal/feedback"
	"github.com/nocdn/mcqsr/internal/session"
	"github.com/nocdn/mcqsr/internal/sets"
	"github.com/nocdn/mcqsr/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	var stats observability.StatsProvider
	if sp, ok := st.(observability.StatsProvider); ok {
		stats = sp
	}
	collector := observability.NewCollector(stats)
	r.Use(collector.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	setsSvc := sets.NewService(sets.ServiceConfig{
		SourceURL: cfg.SetsSourceURL,
		CacheTTL:  cfg.SetsCacheTTL(),
	})
	setsHandler := sets.NewHandler(setsSvc)

	ctrl := session.NewController(st, setsSvc, session.Config{
		TransitionDelay: cfg.NavTransition(),
		RestoreNotice:   cfg.RestoreNotice(),
	})
	sessionHandler := session.NewHandler(ctrl)

	explainSvc := explain.NewService(explain.ServiceConfig{ProxyURL: cfg.ExplainProxyURL})
	explainHandler := explain.NewHandler(explainSvc, setsSvc)

	feedbackSvc := feedback.NewService(feedback.ServiceConfig{
		RelayURL:  cfg.FeedbackRelayURL,
		Recipient: cfg.FeedbackRecipient,
		SMTP: feedback.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
	})
	feedbackHandler := feedback.NewHandler(feedbackSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/sets", setsHandler.List)
		api.Get("/sets/export", setsHandler.Export)
		api.Get("/session", sessionHandler.Get)

		api.Group(func(mutating chi.Router) {
			mutating.Use(RateLimitMiddleware(limiter))
			mutating.Post("/sets/reload", setsHandler.Reload)
			mutating.Post("/sets/import", setsHandler.Import)
			mutating.Put("/session/set", sessionHandler.SelectSet)
			mutating.Post("/session/next", sessionHandler.Next)
			mutating.Post("/session/back", sessionHandler.Back)
			mutating.Post("/session/answers", sessionHandler.Answer)
			mutating.Post("/session/reset-answers", sessionHandler.ResetAnswers)
			mutating.Post("/session/reset-progress", sessionHandler.ResetProgress)
			mutating.Post("/explain", explainHandler.Explain)
			mutating.Post("/feedback", feedbackHandler.Submit)
		})
	})

	return r
}
