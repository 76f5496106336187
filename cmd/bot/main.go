// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fitness-bot/config"
	"fitness-bot/internal/bot"
	"fitness-bot/internal/cache"
	"fitness-bot/internal/coach"
	"fitness-bot/internal/docstore"
	"fitness-bot/internal/gpt"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"
	"fitness-bot/internal/server"
	"fitness-bot/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatalw("Failed to load config", "error", err)
	}

	// Initialize logger
	l := logger.NewWithLevel(cfg.LogLevel)
	defer l.Sync()
	l.Infow("Starting fitness bot...", "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, l)
	defer closeStore()

	mirror, err := cache.NewMirrorCache()
	if err != nil {
		l.Fatalw("Failed to create program mirror", "error", err)
	}
	defer mirror.Close()

	m := metrics.NewManager("fitness", "bot", prometheus.DefaultRegisterer)

	profiles := profile.NewService(store, l.Named("profile"), profile.Options{
		AdminEmail:     cfg.Progression.AdminEmail,
		XPPerSet:       cfg.Progression.XPPerSet,
		XPPerLevel:     cfg.Progression.XPPerLevel,
		InitialCredits: cfg.Progression.InitialCredits,
		Location:       cfg.Location(),
		Metrics:        m,
	})
	programs := program.NewService(store, mirror, l.Named("program"))

	// Initialize GPT client
	var generator gpt.Generator
	if cfg.GPT.APIKey == "" {
		l.Warn("GPT API key is not configured, using canned coach replies")
		generator = gpt.NewFallback()
	} else {
		generator = gpt.NewClient(cfg.GPT.APIKey).WithModel(cfg.GPT.Model)
	}
	coachService := coach.NewService(profiles, programs, generator, l.Named("coach"), m)

	// Initialize Stripe client
	var stripeClient *payment.StripeClient
	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookKey == "" {
		l.Warn("Stripe configuration is incomplete, purchases are disabled")
	} else {
		stripeClient = payment.NewStripeClient(payment.Config{
			SecretKey:  cfg.Stripe.SecretKey,
			PublicKey:  cfg.Stripe.PublicKey,
			WebhookKey: cfg.Stripe.WebhookKey,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
			Prices:     cfg.Stripe.Prices,
		})
	}

	// Create and start bot
	var telegramBot *bot.TelegramBot
	if cfg.Telegram.Token == "" {
		l.Warn("Telegram token is not configured, serving the HTTP API only")
	} else {
		telegramBot, err = bot.NewTelegramBot(cfg.Telegram.Token, bot.Deps{
			Profiles: profiles,
			Programs: programs,
			Coach:    coachService,
			Payments: stripeClient,
		}, l.Named("telegram"))
		if err != nil {
			l.Fatalw("Failed to create Telegram bot", "error", err)
		}

		l.Info("Starting Telegram bot...")
		if err := telegramBot.Start(ctx); err != nil {
			l.Fatalw("Failed to start Telegram bot", "error", err)
		}
		l.Info("Telegram bot started successfully")
	}

	deps := server.Deps{
		Profiles: profiles,
		Programs: programs,
		Coach:    coachService,
		Payments: stripeClient,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		APIKey:   cfg.Server.APIKey,
	}
	if telegramBot != nil {
		deps.OnPurchase = telegramBot.NotifyPurchase
	}
	if deps.APIKey == "" {
		l.Warn("Server API key is not configured, /api/v1 is unauthenticated")
	}

	// Start HTTP server
	httpServer := server.NewServer(cfg.Server.Port, deps, l.Named("http"))
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	l.Info("Shutting down...")

	// Create context for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop HTTP server first
	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}

	// Then stop bot
	if telegramBot != nil {
		if err := telegramBot.Stop(shutdownCtx); err != nil {
			l.Errorw("Error during bot shutdown", "error", err)
		}
	}

	l.Info("Stopped successfully")
}

// openStore connects the configured document store backend and returns it with its cleanup.
func openStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (docstore.Store, func()) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if err := docstore.RunMigrations(cfg.DSN(), cfg.DB.MigrationsPath); err != nil {
			l.Fatalw("Failed to run migrations", "error", err)
		}

		params := docstore.PostgresParams{
			DSN:          cfg.DSN(),
			MaxOpenConns: cfg.DB.MaxOpenConns,
			MaxIdleConns: cfg.DB.MaxIdleConns,
			ConnLifetime: cfg.DB.ConnLifetime,
		}

		// Initialize database connection with retry
		const maxRetries = 5
		for i := 0; i < maxRetries; i++ {
			pool, err := docstore.NewPostgresPool(ctx, params)
			if err == nil {
				s := docstore.NewPostgresStore(pool, l.Named("postgres"))
				return s, s.Close
			}
			l.Errorw("Failed to connect to database, retrying...", "error", err, "attempt", i+1)
			time.Sleep(time.Duration(i+1) * time.Second)
		}
		l.Fatal("Failed to connect to database after multiple attempts")

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.Fatalw("Failed to connect to redis", "error", err)
		}
		return docstore.NewRedisStore(rdb, l.Named("redis")), func() {
			if err := rdb.Close(); err != nil {
				l.Errorw("Failed to close redis client", "error", err)
			}
		}
	}

	l.Warn("Using the in-memory document store, data is lost on restart")
	return docstore.NewMemoryStore(), func() {}
}
