package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/chat-auth-be/internal/api"
	"github.com/isdelr/chat-auth-be/internal/api/handlers"
	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/config"
	"github.com/isdelr/chat-auth-be/internal/database"
	"github.com/isdelr/chat-auth-be/internal/logger"
	"github.com/isdelr/chat-auth-be/internal/mail"
	"github.com/isdelr/chat-auth-be/internal/monitoring"
	"github.com/isdelr/chat-auth-be/internal/queue"
	"github.com/isdelr/chat-auth-be/internal/services"
	"github.com/isdelr/chat-auth-be/internal/store"
	"github.com/isdelr/chat-auth-be/internal/verification"
	"github.com/isdelr/chat-auth-be/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// mailQueueCapacity bounds the in-process mail queue.
const mailQueueCapacity = 256

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up credential store
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	st, err := openStore(cfg, hasher)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to initialize store")
	}

	healthChecks := map[string]handlers.HealthCheck{"store": st.Ping}

	// Set up verification mail delivery
	var sender mail.Sender = mail.LogSender{}
	if cfg.Mail.Enabled() {
		smtp, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize SMTP sender")
		}
		sender = smtp
	} else {
		log.Warn().Msg("MAIL_ADDRESS/MAIL_PASSWORD not set, verification emails will only be logged")
	}
	mailer := mail.NewVerificationMailer(sender, cfg.ClientURL)

	var (
		notifier    services.Notifier
		stopMailing func()
	)
	if cfg.RedisURL != "" {
		redisOpt, err := queue.RedisOpt(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:      redisOpt.Addr,
			Username:  redisOpt.Username,
			Password:  redisOpt.Password,
			DB:        redisOpt.DB,
			TLSConfig: redisOpt.TLSConfig,
		})
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		dispatcher := queue.NewAsynqDispatcher(redisOpt)
		worker := queue.NewWorker(redisOpt, mailer, cfg.MailWorkers)
		go func() {
			if err := worker.Run(); err != nil {
				log.Error().Err(err).Msg("Mail worker stopped")
			}
		}()
		notifier = dispatcher
		stopMailing = func() {
			worker.Shutdown()
			dispatcher.Close()
			rdb.Close()
		}
		log.Info().Msg("Verification emails go through the Redis queue")
	} else {
		pool := queue.NewPool(mailer, cfg.MailWorkers, mailQueueCapacity)
		pool.Start()
		notifier = pool
		stopMailing = pool.Stop
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)
	verifier := verification.NewManager(st)
	authService := services.NewAuthService(st, hasher, tokens, verifier, notifier, hub)

	// Set up and run the account stats reporter
	reporter, err := monitoring.NewStatsReporter(st, cfg.StatsSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize stats reporter")
	}
	reporter.Start()

	// Set up router
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigin: cfg.AllowedOrigin,
		AuthService:   authService,
		Tokens:        tokens,
		Hub:           hub,
		HealthChecks:  healthChecks,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	reporter.Stop()
	stopMailing()
	hub.Close()

	if err := st.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}

	log.Info().Msg("Server exiting")
}

// openStore connects the configured backend and prepares its schema.
func openStore(cfg *config.Config, hasher auth.PasswordHasher) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply database migrations: %w", err)
		}
		return store.NewSQLiteStore(db, hasher), nil
	default:
		client, err := database.ConnectMongo(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		s := store.NewMongoStore(client.Database(cfg.MongoDatabase), hasher)
		if err := s.EnsureIndexes(ctx); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return s, nil
	}
}
