package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned when the sending domain or API key cannot be resolved
var ErrMissingCredentials = errors.New("undefined mailgun domain or API key")

// ValidationError means the message was rejected before rendering or sending
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

// TemplateError wraps a failure to load or render a template
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

type DeliveryErrorKind string

const (
	// KindTransport: the request never got a response
	KindTransport DeliveryErrorKind = "transport"
	// KindRejected: the provider answered with a non-2xx status
	KindRejected DeliveryErrorKind = "rejected"
)

type DeliveryError struct {
	Kind       DeliveryErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Kind == KindRejected {
		return fmt.Sprintf("mailgun rejected message (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("failed to reach mailgun: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a caller-side retry could succeed. A send canceled by
// the caller is not temporary.
func (e *DeliveryError) Temporary() bool {
	if e.Kind == KindTransport {
		return !errors.Is(e.Err, context.Canceled)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
