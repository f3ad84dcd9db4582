package main

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const maxRequestBytes = 1 << 20 // 1MB

type errResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusAllowsBody(status int) bool {
	if status >= 100 && status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	return true
}

// WriteJSON - no need to return error (just log it), since http response already send
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if !statusAllowsBody(status) {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Println("Failed to write JSON response: ", err)
	}
}

// ReadJSON - decode a single JSON object from the request body into data, rejecting unknown fields
func ReadJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("invalid JSON: body must contain a single object")
	}
	return nil
}

func WriteJSONError(w http.ResponseWriter, status int, code string, message string) {
	type envelope struct {
		Error errResponse `json:"error"`
	}
	WriteJSON(w, status, envelope{Error: errResponse{
		Code:    code,
		Message: message,
	}})
}

func (app *application) OutputJSON(w http.ResponseWriter, status int, data any) {
	type envelope struct {
		Data any `json:"data"`
	}
	WriteJSON(w, status, &envelope{Data: data})
}
