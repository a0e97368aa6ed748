package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pesatrack/backend/internal/config"
	"github.com/pesatrack/backend/internal/database"
	"github.com/pesatrack/backend/internal/handlers"
	"github.com/pesatrack/backend/internal/logger"
	"github.com/pesatrack/backend/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// @title Pesa Tracker API
// @version 1.0
// @description M-Pesa SMS import and expense categorization
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("log.level", "LOG_LEVEL")

	configErr := viper.ReadInConfig()

	appLog := logger.NewJSON(os.Stdout, viper.GetString("log.level"))
	log.Logger = appLog
	if configErr != nil {
		appLog.Info().Err(configErr).Msg("Config file not found, using environment and defaults")
	}

	ingestCfg := config.LoadIngestConfig()
	defaultCategories, err := config.LoadDefaultCategories()
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to load default categories")
	}

	// Initialize storage
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.Open(startupCtx, database.LoadConfig(viper.GetViper()), appLog)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	redisClient := database.OpenRedis(startupCtx, database.LoadRedisConfig(viper.GetViper()), appLog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	categoryService, err := services.NewCategoryService(db, ingestCfg.CategoryCacheTTL, appLog)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to initialize category service")
	}
	defer categoryService.Close()

	if n, err := categoryService.SeedDefaults(startupCtx, defaultCategories); err != nil {
		appLog.Fatal().Err(err).Msg("Failed to seed default categories")
	} else if n > 0 {
		appLog.Info().Int("count", n).Msg("Seeded default categories")
	}
	cancelStartup()

	store := services.NewPostgresStore(db, redisClient, ingestCfg.HashIndexTTL, appLog)
	importService := services.NewImportService(store, categoryService, redisClient, ingestCfg, appLog)
	smsHandler := handlers.NewSMSHandler(importService, ingestCfg.MaxBatchSize)
	categoryHandler := handlers.NewCategoryHandler(categoryService)

	r := newRouter(appLog, smsHandler, categoryHandler, healthHandler(db, redisClient))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLog.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info().Msg("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	appLog.Info().Msg("Server stopped")
}
