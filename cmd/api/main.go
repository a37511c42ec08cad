package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/auth"
	"github.com/amoret/amoret/internal/config"
	"github.com/amoret/amoret/internal/database"
	"github.com/amoret/amoret/internal/email"
	httpServer "github.com/amoret/amoret/internal/http"
	"github.com/amoret/amoret/internal/logging"
	"github.com/amoret/amoret/internal/nonce"
	"github.com/amoret/amoret/internal/permission"
	"github.com/amoret/amoret/internal/product"
	"github.com/amoret/amoret/internal/ratelimit"
	"github.com/amoret/amoret/internal/user"
)

// @title           Amoret Identity API
// @version         1.0
// @description     Identity and authorization service: accounts, sessions, single-use action tokens, and subscription entitlements.

// @host      localhost:5000
// @BasePath  /

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.CreateSchema(context.Background(), db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	permRepo := permission.NewRepository(db)
	nonceRepo := nonce.NewRepository(db)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize token services
	nonceEngine := nonce.NewEngine(cfg.Auth.NonceSecret, cfg.Auth.VerifyEmailTTL)
	nonceService := nonce.NewService(nonceEngine, nonceRepo)
	sessionService := auth.NewSessionService(cfg.Auth.TokenIssuer, cfg.Auth.SessionTokenTTL)

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromName,
		cfg.Email.FromEmail,
	)

	// Initialize identity service
	authService := auth.NewService(
		db,
		userRepo,
		permRepo,
		nonceService,
		sessionService,
		emailService,
		product.DefaultCatalog(),
		logger,
		cfg.Server.BackendURL,
		cfg.Server.FrontendURL,
		cfg.Email.ReviewEmail,
		cfg.Auth.SaltLength,
		cfg.Auth.SaltClasses,
	)

	// Initialize HTTP handlers and gates
	userHandler := auth.NewHandler(authService, rateLimiter, logger)
	gates := auth.NewMiddleware(authService, userRepo, nonceService, logger)

	// Initialize router
	router := httpServer.NewRouter(cfg, userHandler, gates, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
