package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	"github.com/fleetrent/service-rental/internal/config"
	"github.com/fleetrent/service-rental/internal/database"
	rentalEvents "github.com/fleetrent/service-rental/internal/events"
	"github.com/fleetrent/service-rental/internal/handler"
	"github.com/fleetrent/service-rental/internal/logger"
	"github.com/fleetrent/service-rental/internal/middleware"
	"github.com/fleetrent/service-rental/internal/repository"
)

const serviceName = "service-rental"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-rental",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.VehicleModel{},
			&repository.BookingModel{},
			&repository.InvoiceModel{},
			&repository.PaymentModel{},
			&repository.InspectionPhotoModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.Database.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, 15*time.Minute)

	// Initialize Kafka producer
	producer := rentalEvents.NewKafkaPublisher(cfg.Kafka.Brokers, serviceName, log)
	defer func() { _ = producer.Close() }()

	// Initialize Redis-backed availability cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()
	cache := application.NewAvailabilityCache(redisClient, log)

	// Initialize repositories
	tx := repository.NewGormTransactor(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	vehicleRepo := repository.NewGormVehicleRepository(db)
	invoiceRepo := repository.NewGormInvoiceRepository(db)
	inspectionRepo := repository.NewGormInspectionRepository(db)

	// Initialize application services
	bookingService := application.NewBookingService(bookingRepo, vehicleRepo, tx, cache, producer, cfg.Rates, log)
	invoiceService := application.NewInvoiceService(invoiceRepo, bookingRepo, tx, producer, cfg.Rates, log)
	fleetService := application.NewFleetService(vehicleRepo, tx, cache, log)
	inspectionService := application.NewInspectionService(inspectionRepo, bookingRepo, log)

	// Initialize and start the payment gateway consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.Kafka.GroupPrefix + serviceName
	gatewayConsumer := rentalEvents.NewGatewayConsumer(cfg.Kafka.Brokers, groupID, invoiceService, log)
	defer func() { _ = gatewayConsumer.Close() }()

	go func() {
		log.Info("starting payment gateway consumer")
		if err := gatewayConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment gateway consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	fleetHandler := handler.NewFleetHandler(fleetService)
	inspectionHandler := handler.NewInspectionHandler(inspectionService)
	adminHandler := handler.NewAdminHandler(bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	invoiceHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	fleetHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	inspectionHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-rental...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-rental stopped")
}
