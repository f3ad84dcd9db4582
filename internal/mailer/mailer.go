package mailer

import (
	"context"
	"embed"
)

const (
	FromName             = "CoCraft"
	WelcomeTemplate      = "welcome.html"
	UserActivateTemplate = "user_invitation.html"
)

// FS embed files in 'templates' folder, used when no template directory is configured
//
//go:embed "templates"
var FS embed.FS

// Message is a single outbound email.
//
// Body is sent as is unless Template is set and Data is non-nil, in which case
// the rendered template replaces it. An empty, non-nil Data still renders.
type Message struct {
	From     string
	To       []string
	Subject  string
	Template string
	Data     map[string]any
	Body     string

	// Variables are attached as provider custom variables (v:<name>)
	Variables map[string]string
}

// Response is what the provider returned for an accepted message
type Response struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

type Client interface {
	Send(ctx context.Context, msg *Message) (*Response, error)
}
