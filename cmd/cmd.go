package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetup-backend/internal/config"
	"meetup-backend/internal/events"
	"meetup-backend/internal/handlers"
	"meetup-backend/internal/notify"
	"meetup-backend/internal/repository"
	"meetup-backend/internal/repository/memory"
	"meetup-backend/internal/services"
	"meetup-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stores bundles one storage backend
type stores struct {
	users   services.UserStore
	places  services.PlaceStore
	queues  services.QueueStore
	matches services.MatchStore
	close   func()
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func Run(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	rdb := connectRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	wsHub := services.NewWSHub()
	fanout := events.Fanout{wsHub}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		fanout = append(fanout, publisher)
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("Event publishing enabled")
	}

	if cfg.APNs.KeyPath != "" {
		client, err := notify.NewClient(notify.Config{
			KeyPath:    cfg.APNs.KeyPath,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		fanout = append(fanout, notify.NewAPNs(client, cfg.APNs.Topic, st.users, wsHub))
		log.Info().Bool("production", cfg.APNs.Production).Msg("Push notifications enabled")
	}

	var images services.ImageStorage
	if cfg.AWS.S3Bucket != "" {
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
			PublicURL: cfg.AWS.PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		images = s3
	}

	userService := services.NewUserService(st.users, cfg.JWT.Secret, cfg.JWT.TTL)
	placeService := services.NewPlaceService(st.places, images, storage.UploadExpiry)
	queueService := services.NewQueueService(
		st.queues,
		st.matches,
		st.places,
		st.users,
		services.NewSelector(cfg.Matching.Strategy),
		fanout,
	)
	matchService := services.NewMatchService(st.matches, st.users, st.places, fanout)

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:       cfg,
		Redis:        rdb,
		UserService:  userService,
		PlaceService: placeService,
		QueueService: queueService,
		MatchService: matchService,
		Hub:          wsHub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("strategy", cfg.Matching.Strategy).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStores connects to PostgreSQL and applies the schema, or builds
// the in-memory store when the driver is "memory"
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		db := memory.New()
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return &stores{
			users:   db.Users(),
			places:  db.Places(),
			queues:  db.Queues(),
			matches: db.Matches(),
			close:   func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("Database connection established")

	return &stores{
		users:   repository.NewUserRepository(pool),
		places:  repository.NewPlaceRepository(pool),
		queues:  repository.NewQueueRepository(pool),
		matches: repository.NewMatchRepository(pool),
		close:   pool.Close,
	}, nil
}

// connectRedis returns nil when Redis is not configured or unreachable;
// rate limiting is skipped then
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, rate limiting disabled")
		rdb.Close()
		return nil
	}
	log.Info().Str("addr", cfg.Addr).Msg("Redis connection established")
	return rdb
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
