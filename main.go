package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"restaurante/internal/config"
	"restaurante/internal/handlers"
	"restaurante/internal/logger"
	"restaurante/internal/middleware"
	"restaurante/internal/models"
	"restaurante/internal/realtime"
	"restaurante/internal/repositories"
	"restaurante/internal/services"
)

// Server bundles the HTTP app with the realtime channel it serves.
type Server struct {
	App     *fiber.App
	Channel *realtime.Channel
}

// Stores are the persistence backends of a Server.
type Stores struct {
	Orders    repositories.OrderRepository
	Operators repositories.OperatorRepository
}

// NewServer assembles services, handlers and routes.
func NewServer(cfg *config.Config, stores Stores, channel *realtime.Channel) *Server {
	orderService := services.NewOrderService(stores.Orders, realtime.NewPublisher(channel))
	authService := services.NewAuthService(stores.Operators, cfg.JWTSecret)

	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)
	wsServer := realtime.NewWSServer(channel.Hub(), authService.AuthorizeAdmin)

	app := fiber.New(fiber.Config{
		AppName:      "restaurante",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"time":      time.Now().Format(time.RFC3339),
			"backplane": cfg.RealtimeBackplane,
		})
	})

	wsServer.RegisterRoutes(app)

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	orderHandler.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService))
	orderHandler.RegisterAdminRoutes(admin)
	authHandler.RegisterAdminRoutes(admin)

	return &Server{App: app, Channel: channel}
}

// openStores connects the configured database and migrates the schema.
func openStores(cfg *config.Config) (Stores, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	case "memory":
		// Orders live in process; operator accounts still need a table.
		dialector = sqlite.Open("file:operators?mode=memory&cache=shared")
	default:
		return Stores{}, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return Stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.Operator{}); err != nil {
		return Stores{}, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	stores := Stores{
		Orders:    repositories.NewGORMOrderRepository(db),
		Operators: repositories.NewGORMOperatorRepository(db),
	}
	if cfg.DatabaseDriver == "memory" {
		stores.Orders = repositories.NewMemoryOrderRepository()
	}
	return stores, nil
}

// seedOperator creates the bootstrap operator from ADMIN_USERNAME and
// ADMIN_PASSWORD. Without it nobody could log in to register the others.
func seedOperator(ctx context.Context, cfg *config.Config, stores Stores) error {
	if cfg.AdminUsername == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required with ADMIN_USERNAME")
	}
	authService := services.NewAuthService(stores.Operators, cfg.JWTSecret)
	created, err := authService.SeedOperator(ctx, models.Operator{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap operator created", "username", cfg.AdminUsername)
	}
	return nil
}

// openBackplane selects how realtime events reach the other instances.
func openBackplane(ctx context.Context, cfg *config.Config, hub *realtime.Hub) (realtime.Backplane, error) {
	switch cfg.RealtimeBackplane {
	case "", "local":
		return realtime.NewLocalBackplane(hub), nil
	case "rabbitmq":
		return realtime.NewAMQPBackplane(cfg.RabbitMQURL)
	case "redis":
		return realtime.NewRedisBackplane(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown REALTIME_BACKPLANE %q", cfg.RealtimeBackplane)
	}
}

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openStores(cfg)
	if err != nil {
		logger.L().Fatalw("failed to open stores", "driver", cfg.DatabaseDriver, "err", err)
	}
	if err := seedOperator(ctx, cfg, stores); err != nil {
		logger.L().Fatalw("failed to seed operator", "username", cfg.AdminUsername, "err", err)
	}

	hub := realtime.NewHub(realtime.DefaultMailboxSize)
	backplane, err := openBackplane(ctx, cfg, hub)
	if err != nil {
		logger.L().Fatalw("failed to initialize realtime backplane", "backplane", cfg.RealtimeBackplane, "err", err)
	}
	channel := realtime.NewChannel(hub, backplane, realtime.WithRetryBackoff(500*time.Millisecond, cfg.ReconnectMaxDelay))
	defer channel.Close()

	srv := NewServer(cfg, stores, channel)

	go func() {
		if err := channel.Run(ctx); err != nil {
			logger.Error("realtime backplane stopped", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.AppPort, "backplane", cfg.RealtimeBackplane)
		if err := srv.App.Listen(cfg.AppPort); err != nil {
			logger.L().Fatalw("server failed to start", "err", err)
		}
	}()

	<-quit
	logger.Info("shutting down server")
	cancel()

	if err := srv.App.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("error during fiber shutdown", "err", err)
	}
	logger.Info("server gracefully stopped")
}
