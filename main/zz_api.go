package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hnzhou16/cocraft-notify/internal/db"
	"github.com/hnzhou16/cocraft-notify/internal/mailer"
	"go.uber.org/zap"
)

// zz_api.go is named to ensure it's compiled last.
// This allows all handler functions (defined in other files) to be available.

type application struct {
	config config
	logger *zap.SugaredLogger
	mailer mailer.Client
	db     pinger
}

type config struct {
	addr       string
	env        string
	version    string
	apiKey     string
	dbConfig   db.Config
	mailConfig mailer.MailgunConfig
}

func (app *application) mount() *chi.Mux {
	// mux is returned in chi
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// timeout request context
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", app.healthCheckHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(app.apiKeyMiddleware)

		r.Post("/email", app.sendEmailHandler)
	})

	return r
}

func (app *application) run(mux *chi.Mux) *http.Server {

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}

	app.logger.Infow("server started", "addr", app.config.addr, "env", app.config.env)

	// Start server in a goroutine to allow graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatalw("server failed", "error", err)
		}
	}()

	return srv
}
