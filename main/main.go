package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hnzhou16/cocraft-notify/internal/db"
	"github.com/hnzhou16/cocraft-notify/internal/env"
	"github.com/hnzhou16/cocraft-notify/internal/mailer"
	"github.com/lpernett/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Error loading .env file")
	}

	// initialize app config
	cfg := config{
		addr:     env.GetString("ADDR", ":8080"),
		env:      env.GetString("ENV", db.ProductionEnv),
		version:  env.GetString("VERSION", "1.0.0"),
		apiKey:   env.GetString("NOTIFY_API_KEY", ""),
		dbConfig: db.ConfigFromEnv(),
		mailConfig: mailer.MailgunConfig{
			Domain:       env.GetString("MAILGUN_DOMAIN", ""),
			APIKey:       env.GetString("MAILGUN_API_KEY", ""),
			BaseURL:      env.GetString("MAILGUN_BASE_URL", mailer.DefaultBaseURL),
			TemplatesDir: env.GetString("MAIL_TEMPLATES_DIR", ""),
			Timeout:      env.GetDuration("MAILGUN_TIME_OUT", 30*time.Second),
		},
	}

	// initialize logger
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	if cfg.apiKey == "" {
		logger.Warn("⚠️ NOTIFY_API_KEY is not set, /v1 routes are unauthenticated")
	}

	// connect to db
	connector := db.NewConnector(logger)
	dbConn, err := connector.Connect(context.Background(), cfg.dbConfig)
	if err != nil {
		logger.Fatalw("❌ Error connecting to database", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = connector.Close(ctx)
	}()

	// Initialize Mailer
	mailgun, err := mailer.NewMailgun(cfg.mailConfig, logger)
	if err != nil {
		logger.Fatalw("❌ Error initializing mailer", "error", err)
	}

	// Initialize app
	app := &application{
		config: cfg,
		logger: logger,
		mailer: mailgun,
		db:     dbConn,
	}

	// Create the server
	mux := app.mount()

	// Start the server in a goroutine
	server := app.run(mux)

	// Gracefully shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	<-shutdown
	logger.Info("🛑 Server shutting down...")

	// Gracefully shut down the server with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warnw("⚠️ Error during server shutdown", "error", err)
	}

	logger.Info("✅ Server gracefully stopped.")
}
