package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
	"gopkg.in/telebot.v3"

	"golang-object-generation/internal/api/handlers"
	"golang-object-generation/internal/api/routes"
	"golang-object-generation/internal/config"
	"golang-object-generation/internal/models"
	"golang-object-generation/internal/repository"
	"golang-object-generation/internal/services/gemini_ai"
	"golang-object-generation/internal/services/generation"
	"golang-object-generation/internal/services/notify"
	"golang-object-generation/internal/services/sandbox"
	"golang-object-generation/internal/services/snapshot"
	"golang-object-generation/pkg/postgres"
	"golang-object-generation/pkg/ratelimit"
	"golang-object-generation/pkg/redis"
)

func main() {
	ctxCancel, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse log level")
	}
	logger.SetLevel(logrusLevel)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Setup CORS
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.AutoMigrate(&models.ObjectTaskEntity{}, &models.ObjectTaskResultEntity{}); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database schema")
	}

	// Initialize repositories
	objectTaskRepo := repository.NewObjectTaskRepository(db.DB)
	taskResultRepo := repository.NewTaskResultRepository(db.DB)

	genClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Gemini client")
	}
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Redis client")
	}

	// Initialize services
	geminiLimiter := ratelimit.NewGeminiRateLimiter(cfg.Gemini.MaxRequestPerMinute, logger)
	geminiClient := gemini_ai.NewClient(&cfg.Gemini, logger, genClient, geminiLimiter)
	sandboxHost := sandbox.NewHost(&cfg.Sandbox, logger)
	renderer := snapshot.NewClient(&cfg.Snapshot)

	// Telegram notifications are optional; the service runs without them.
	var notifier generation.CompletionNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		pref := telebot.Settings{
			Token: cfg.Telegram.BotToken,
			OnError: func(err error, c telebot.Context) {
				logger.WithError(err).Error("Telegram bot error")
			},
		}
		bot, err := telebot.NewBot(pref)
		if err != nil {
			logger.WithError(err).Fatal("failed to create telegram bot")
		}
		notifier, err = notify.NewTelegramNotifier(&cfg.Telegram, logger, bot)
		if err != nil {
			logger.WithError(err).Fatal("failed to create telegram notifier")
		}
	}

	registry := generation.NewRegistry(ctxCancel, cfg, logger, geminiClient, sandboxHost, objectTaskRepo, taskResultRepo, renderer, redisClient, notifier)

	// Initialize handlers
	objectHandler := handlers.NewObjectHandler(registry, logger, cfg)

	// Setup routes
	routes.SetupRoutes(router, objectHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop in-flight generation loops, then the HTTP server
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("HTTP server shutdown completed successfully")
	}

	logger.Info("Server exited")
}
