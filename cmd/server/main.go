package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/chat"
	"github.com/courierchat/courier/internal/config"
	"github.com/courierchat/courier/internal/delivery"
	"github.com/courierchat/courier/internal/entity"
	"github.com/courierchat/courier/internal/notify"
	"github.com/courierchat/courier/internal/presence"
	"github.com/courierchat/courier/internal/push"
	"github.com/courierchat/courier/internal/repository"
	"github.com/courierchat/courier/internal/transport"
	"github.com/courierchat/courier/internal/watcher"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("database open failed")
	}
	err = db.AutoMigrate(
		&entity.User{}, &entity.UserDevice{},
		&entity.Room{}, &entity.Membership{},
		&entity.Message{}, &entity.Recipient{},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Str("dsn", cfg.DatabaseDSN).Msg("database ready")

	var store cache.Cache
	switch cfg.CacheBackend {
	case "memory":
		store = cache.NewMemoryCache()
		logger.Info().Msg("using in-memory cache")
	default:
		store, err = cache.NewRedisCache(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		logger.Info().Msg("connected to redis")
	}
	defer store.Close()

	var publisher transport.Publisher
	switch cfg.TransportBackend {
	case "zmq":
		publisher, err = transport.NewZMQPublisher(cfg.ZMQPubAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("zmq bind failed")
		}
		logger.Info().Str("addr", cfg.ZMQPubAddr).Msg("zmq publisher bound")
	default:
		publisher, err = transport.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis publisher failed")
		}
		logger.Info().Msg("redis publisher ready")
	}
	defer publisher.Close()

	var provider push.Provider = push.Discard{}
	if cfg.PushURL != "" {
		provider = push.NewHTTPProvider(cfg.PushURL, cfg.PushKey)
		logger.Info().Str("url", cfg.PushURL).Msg("push provider configured")
	}

	users := repository.NewSQLiteUserRepository(db)
	rooms := repository.NewSQLiteRoomRepository(db)
	messages := repository.NewSQLiteMessageRepository(db)
	devices := repository.NewSQLiteDeviceRepository(db)

	presences := presence.NewTracker(store, users, cfg.PresenceTTL, logger)
	deliveries := delivery.NewTracker(store, cfg.DeliveryTTL, logger)
	dispatcher := notify.NewDispatcher(presences, publisher, provider, devices, logger)

	router, err := chat.NewService(users, rooms, messages, publisher, dispatcher, deliveries, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("router init failed")
	}
	logger.Info().Str("system_user", router.SystemUserUUID()).Msg("message router ready")

	w := watcher.New(store, deliveries, presences, users, dispatcher, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("watcher stopped")
		}
	}
}
