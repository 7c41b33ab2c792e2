package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sevacare/refdata/internal/config"
	"github.com/sevacare/refdata/internal/platform/db"
	"github.com/sevacare/refdata/internal/watcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "refdata-watcher").Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("app", "refdata-watcher").Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateWatcher(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to document store")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			logger.Warn().Err(err).Msg("document store disconnect")
		}
	}()
	if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping document store")
	}

	sender, err := watcher.NewFCMSender(ctx, cfg.FCMCredentials)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init push sender")
	}

	w := watcher.New(
		watcher.NewBookingRepoPG(pool),
		watcher.NewMongoDevices(mongoClient.Database(cfg.MongoDatabase)),
		sender,
		logger,
		cfg.PollInterval(),
	)

	logger.Info().Msg("watcher starting")
	w.Run(ctx)
	logger.Info().Msg("watcher stopped")
}
