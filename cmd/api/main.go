package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/gameshelf/api/internal/account"
	"github.com/gameshelf/api/internal/auth"
	"github.com/gameshelf/api/internal/config"
	"github.com/gameshelf/api/internal/database"
	"github.com/gameshelf/api/internal/email"
	apphttp "github.com/gameshelf/api/internal/http"
	"github.com/gameshelf/api/internal/logging"
	"github.com/gameshelf/api/internal/ratelimit"
	"github.com/gameshelf/api/internal/upload"
	"github.com/gameshelf/api/internal/user"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	sqlDB, err := initDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlDB.Close()

	db := database.NewBunDB(sqlDB)

	redisClient, err := initRedis(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	logger.Info("connected to database and redis")

	// Repositories and stores
	userRepo := user.NewRepository(db)
	sessionStore := auth.NewRedisSessionStore(redisClient, cfg.Auth.TokenDuration)
	rateLimiter := ratelimit.NewLimiter(redisClient)

	uploadStore, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		return fmt.Errorf("failed to init upload store: %w", err)
	}

	// Auth stack
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	tokenService, err := auth.NewPasetoService(cfg.Auth.TokenKey, cfg.Auth.TokenDuration)
	if err != nil {
		return fmt.Errorf("failed to init token service: %w", err)
	}
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Server.FrontendURL,
	)
	authService := auth.NewService(
		userRepo,
		sessionStore,
		tokenService,
		hasher,
		emailService,
		logger,
		cfg.Auth.ResetTokenDuration,
	)

	// Handlers
	isProduction := !cfg.Server.IsDevelopment()
	authHandler := auth.NewHandler(authService, sessionStore, rateLimiter, logger, isProduction, cfg.Auth.TokenDuration)

	var oauthHandler *auth.OAuthHandler
	if cfg.OAuth.GoogleEnabled() {
		provider := auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleCallbackURL)
		oauthHandler = auth.NewOAuthHandler(provider, authService, sessionStore, logger, cfg.Server.FrontendURL, isProduction, cfg.Auth.TokenDuration)
		logger.Info("google oauth enabled")
	}

	userService := user.NewService(userRepo, uploadStore, logger)
	accountHandler := account.NewHandler(userService, logger, cfg.Upload.MaxBytes)

	authMiddleware := auth.NewMiddleware(tokenService, sessionStore)

	router := apphttp.NewRouter(cfg, authHandler, oauthHandler, authMiddleware, accountHandler, logger)
	server := apphttp.NewServer(":"+cfg.Server.Port, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger)

	// Start server in a goroutine so shutdown signals can be handled
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
