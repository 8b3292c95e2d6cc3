package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"muebles/internal/config"
	"muebles/internal/models"
	"muebles/internal/repositories"
	"muebles/internal/services"
	"muebles/pkg/rabbitmq"
	"muebles/pkg/xano"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Prices travel as JSON numbers, matching the upstream API.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.User{}, &models.Order{}, &models.LineItem{}, &models.StatusChange{}, &models.Notification{}); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	userRepo := repositories.NewGORMUserRepository(db)
	notificationRepo := repositories.NewGORMNotificationRepository(db)
	draftRepo := repositories.NewMemoryDraftRepository(cfg.DraftLineLimit)

	deps := appDeps{
		Drafts:        draftRepo,
		Users:         userRepo,
		Notifications: notificationRepo,
		Notifier:      services.NewStoreNotifier(notificationRepo),
		JWTSecret:     cfg.JWTSecret,
		Backend:       cfg.OrderBackend,
		Logger:        logger,
	}

	var client *xano.Client
	if cfg.RemoteIdentity() || cfg.UsesXano() {
		client = xano.NewClient(cfg.Xano, logger)
	}
	if cfg.UsesXano() {
		deps.Orders = xano.NewOrderGateway(client, cfg.Xano)
		logger.Info("orders are stored upstream", zap.Strings("resources", cfg.Xano.OrderResources))
	} else {
		deps.Orders = repositories.NewGORMOrderRepository(db)
		logger.Info("orders are stored locally", zap.String("driver", cfg.DBDriver))
	}
	if cfg.RemoteIdentity() {
		deps.Identity = xano.NewIdentity(client, cfg.Xano)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.Queue}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		deps.Notifier = mqClient

		// The consumer is the only writer of notifications when the queue is on.
		if err := mqClient.ConsumeNotifications(ctx, notificationRepo.Create); err != nil {
			logger.Error("Failed to start notification consumer", zap.Error(err))
		}
	}

	app := newApp(deps)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	cancel()
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", cfg.DBDriver)
	}
	return db, nil
}
