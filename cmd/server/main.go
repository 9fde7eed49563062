package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/internal/config"
	parkingEvents "github.com/Kilat-Parking/service-parking/internal/events"
	"github.com/Kilat-Parking/service-parking/internal/handler"
	"github.com/Kilat-Parking/service-parking/internal/notification"
	"github.com/Kilat-Parking/service-parking/internal/repository"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/cache"
	"github.com/Kilat-Parking/service-parking/pkg/database"
	"github.com/Kilat-Parking/service-parking/pkg/health"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
	"github.com/Kilat-Parking/service-parking/pkg/logger"
	"github.com/Kilat-Parking/service-parking/pkg/middleware"
)

const serviceName = "service-parking"

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

	log.Info("starting service-parking",
		zap.String("port", cfg.Port),
		zap.Bool("require_payment", cfg.Booking.RequirePayment),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.AllModels()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize lot cache
	var lotCache cache.Cache = cache.NewMemoryCache()
	if cfg.RedisConfig.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		lotCache = cache.NewRedisCache(redisClient, log)
		log.Info("redis lot cache enabled", zap.String("addr", cfg.RedisConfig.Addr))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTokenTTL,
		cfg.JWTConfig.RefreshTokenTTL,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize notification sink
	var notifier application.Notifier
	switch cfg.NotificationDriver {
	case notification.DriverLog:
		notifier = notification.NewLogNotifier(log)
	default:
		notifier = notification.NewKafkaNotifier(kafkaProducer, serviceName)
	}

	// Initialize repositories
	uow := repository.NewGormUnitOfWork(db)
	repos := repository.NewRepositories(db)

	// Initialize application services
	authService := application.NewAuthService(repos, jwtManager, log)
	vehicleService := application.NewVehicleService(uow, repos, log)
	parkingService := application.NewParkingService(uow, repos, lotCache, cfg.RedisConfig.TTL, log)
	bookingService := application.NewBookingService(
		uow,
		repos,
		kafkaProducer,
		notifier,
		lotCache,
		application.BookingConfig{
			RequirePayment: cfg.Booking.RequirePayment,
			PaymentTimeout: cfg.Booking.PaymentTimeout,
		},
		log,
	)

	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("failed to seed admin account", zap.Error(err))
		}
	}

	// Start payment event consumer in a goroutine
	groupID := cfg.KafkaConfig.GroupPrefix + "parking-service"
	paymentConsumer := parkingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Start expiry sweeper
	sweeper := application.NewExpirySweeper(
		bookingService,
		repos,
		cfg.Booking.PaymentTimeout,
		cfg.Booking.SweepInterval,
		log,
	)
	go sweeper.Run(ctx)

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	vehicleHandler := handler.NewVehicleHandler(vehicleService)
	parkingHandler := handler.NewParkingHandler(parkingService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	authHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	vehicleHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	parkingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-parking...")

	// Stop the consumer and the sweeper
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-parking stopped")
}
