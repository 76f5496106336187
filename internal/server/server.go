// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"fitness-bot/internal/coach"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"
	"fitness-bot/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Profiles *profile.Service
	Programs *program.Service
	Coach    *coach.Service
	// Payments may be nil when Stripe is not configured.
	Payments *payment.StripeClient
	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer
	// APIKey guards /api/v1; empty leaves it open.
	APIKey string
	// OnPurchase is called after a purchase was applied to the profile.
	OnPurchase func(ctx context.Context, p payment.Purchase)
}

type Server struct {
	server *http.Server
	router chi.Router
	deps   Deps
	logger *logger.Logger
}

func NewServer(port string, deps Deps, logger *logger.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		logger: logger,
	}
	s.routes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.logger, s.deps.Metrics))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Post("/webhook/stripe", s.handleStripeWebhook)

	s.router.Route("/api/v1/users/{uid}", func(r chi.Router) {
		if s.deps.APIKey != "" {
			r.Use(APIKeyAuth(s.deps.APIKey))
		}

		r.Post("/", s.handleCreateProfile)
		r.Get("/", s.handleGetProfile)
		r.Patch("/", s.handleUpdateProfile)
		r.Post("/xp", s.handleAddXP)
		r.Post("/sets", s.handleCompleteSet)
		r.Delete("/sets", s.handleResetCompletedSets)
		r.Post("/active-days", s.handleUpdateActiveDays)
		r.Get("/credits", s.handleCheckCredits)
		r.Post("/credits/use", s.handleUseCredit)

		r.Route("/program", func(r chi.Router) {
			r.Get("/", s.handleGetProgram)
			r.Put("/", s.handleSaveProgram)
			r.Delete("/", s.handleDeleteProgram)
			r.Post("/days", s.handleAddDay)
			r.Patch("/days/{day}", s.handleUpdateDay)
			r.Delete("/days/{day}", s.handleDeleteDay)
			r.Post("/days/{day}/move", s.handleMoveDay)
			r.Post("/days/{day}/exercises", s.handleAddExercise)
			r.Patch("/days/{day}/exercises/{exerciseID}", s.handleUpdateExercise)
			r.Delete("/days/{day}/exercises/{exerciseID}", s.handleDeleteExercise)
		})

		r.Post("/coach/ask", s.handleAsk)
		r.Post("/coach/generate", s.handleGenerate)
		r.Post("/coach/revise", s.handleRevise)
		r.Post("/checkout", s.handleCheckout)
	})
}

func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
