package main

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	database := "ok"

	if app.db == nil {
		database = "unavailable"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		if err := app.db.Ping(ctx); err != nil {
			app.logger.Warnw("database ping failed", "error", err)
			database = "unavailable"
		}
	}

	status := http.StatusOK
	if database != "ok" {
		status = http.StatusServiceUnavailable
	}

	app.OutputJSON(w, status, map[string]string{
		"status":   http.StatusText(status),
		"env":      app.config.env,
		"version":  app.config.version,
		"database": database,
	})
}
