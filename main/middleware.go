package main

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// Middleware wraps an HTTP handler, modifying the request(r) or response(w) before passing control to next handler

// apiKeyMiddleware - require "Authorization: Bearer <NOTIFY_API_KEY>" when an API key is configured
func (app *application) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// validate header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.unauthorizedError(w, r, fmt.Errorf("missing Authorization header"))
			return
		}

		// extract token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			app.unauthorizedError(w, r, fmt.Errorf("invalid Authorization header"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(app.config.apiKey)) != 1 {
			app.unauthorizedError(w, r, fmt.Errorf("invalid API key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
