package main

import (
	"net/http"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal server error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	WriteJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func (app *application) badRequestError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	WriteJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
}

func (app *application) unauthorizedError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	WriteJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
}

// badGatewayError - the email provider answered but refused the message
func (app *application) badGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("provider rejected request", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	WriteJSONError(w, http.StatusBadGateway, "PROVIDER_REJECTED", err.Error())
}

// serviceUnavailableError - the email provider could not be reached
func (app *application) serviceUnavailableError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("provider unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	WriteJSONError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "email provider unavailable")
}
