package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"pdfqa/internal/config"
	"pdfqa/internal/mail_client"
	"pdfqa/internal/openai_client"
	"pdfqa/internal/repository"
	"pdfqa/internal/server"
	"pdfqa/internal/service"
	"pdfqa/internal/storage"
	"pdfqa/internal/telegram_bot"
)

const defaultConfigPath = "configs/config.yml"

func main() {
	cfgPath := flag.String("config", configPathFromEnv(), "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load config", zap.String("path", *cfgPath), zap.Error(err))
	}

	logger, err := newLogger(cfg.Log.Debug)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Database connection
	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tokens, err := service.NewTokenManager(service.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		ResetSalt:  cfg.Auth.ResetSalt,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
		ResetTTL:   cfg.Auth.ResetTokenTTL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db, logger)
	mailClient := mail_client.NewClient(cfg.Mail.ServiceURL, cfg.Mail.APIKey, logger)
	authService := service.NewAuthService(userRepo, tokens, mailClient, service.AuthOptions{
		RegistrationSecret: cfg.Auth.RegistrationSecret,
		FrontendURL:        cfg.Mail.FrontendURL,
	}, logger)

	if err := authService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Fatal("Failed to provision admin account", zap.Error(err))
	}

	// Initialize Telegram bot for operator notifications
	bot, err := telegram_bot.NewBot(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}
	var notifier service.Notifier
	if bot != nil {
		notifier = bot
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	openaiClient := openai_client.NewClient(openai_client.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.HTTPTimeout,
	}, logger)
	assistantService := service.NewAssistantService(openaiClient, storage.NewUploadStore(cfg.Uploads.Dir), notifier, service.AssistantConfig{
		PollInterval: cfg.OpenAI.PollInterval,
		RunTimeout:   cfg.OpenAI.RunTimeout,
		IndexTimeout: cfg.OpenAI.IndexTimeout,
	}, logger)

	// Initialize and run the server
	srv := server.NewServer(cfg, authService, assistantService, logger, newAccessLogger(cfg.Log.Debug))
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Application stopped.")
}

func configPathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newAccessLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
