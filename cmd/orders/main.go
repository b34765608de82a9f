package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/clients"
	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/events"
	"github.com/cavelier-wines/cavelier-orders-service/internal/handlers"
	"github.com/cavelier-wines/cavelier-orders-service/internal/repository"
	"github.com/cavelier-wines/cavelier-orders-service/internal/server"
	"github.com/cavelier-wines/cavelier-orders-service/internal/service"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting cavelier-orders-service", zap.Int("port", cfg.Server.Port))

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Features.EnableAutoMigrate {
		if err := repository.RunMigrations(db, cfg.Database.MigrationsPath, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	orderStore := repository.NewPostgresOrderStore(db, logger)
	orderCache := repository.NewRedisOrderCache(cfg.Redis, logger)

	paymentClient := clients.NewHTTPPaymentClient(cfg.PaymentService, logger)
	cartClient := clients.NewHTTPCartClient(cfg.CartService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	calculator := vat.NewCalculator(vat.NewRegistry(), cfg.Checkout.SellerCountry)

	checkoutService := service.NewCheckoutService(
		orderStore,
		orderCache,
		paymentClient,
		cartClient,
		notificationClient,
		eventPublisher,
		calculator,
		cfg,
		logger,
	)

	h := handlers.New(checkoutService, db, logger)
	srv := server.New(h, cfg)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	eventConsumer := events.NewKafkaConsumer(cfg.Kafka, checkoutService, logger)
	go func() {
		if err := eventConsumer.Start(context.Background()); err != nil && err != context.Canceled {
			logger.Error("payment event consumer stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventConsumer.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}
