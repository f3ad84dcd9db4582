package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hnzhou16/cocraft-notify/internal/env"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.mailgun.net"
	defaultTimeout = 30 * time.Second

	// Mailgun uses Basic Auth with "api" as username
	apiUser = "api"

	maxResponseBody = 64 << 10
)

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type MailgunConfig struct {
	// Domain and APIKey fall back to MAILGUN_DOMAIN and MAILGUN_API_KEY
	Domain string
	APIKey string
	// BaseURL falls back to MAILGUN_BASE_URL, then DefaultBaseURL
	BaseURL string
	// TemplatesDir is read from disk when set, otherwise the embedded templates are used
	TemplatesDir string
	Timeout      time.Duration
}

type Mailgun struct {
	domain     string
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	renderer   *Renderer
	logger     *zap.SugaredLogger
}

// NewMailgun resolves credentials before touching templates or the network
func NewMailgun(cfg MailgunConfig, logger *zap.SugaredLogger) (*Mailgun, error) {
	domain := cfg.Domain
	if domain == "" {
		domain = env.GetString("MAILGUN_DOMAIN", "")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = env.GetString("MAILGUN_API_KEY", "")
	}

	if domain == "" || apiKey == "" {
		return nil, fmt.Errorf("failed to configure mailgun: %w", ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = env.GetString("MAILGUN_BASE_URL", DefaultBaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var templates fs.FS
	if cfg.TemplatesDir != "" {
		templates = os.DirFS(cfg.TemplatesDir)
	} else {
		templates = DefaultTemplates()
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Mailgun{
		domain:     domain,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		renderer:   NewRenderer(templates),
		logger:     logger,
	}, nil
}

func (m *Mailgun) Domain() string {
	return m.domain
}

// Send resolves the body, then issues a single POST. Nothing is retried.
func (m *Mailgun) Send(ctx context.Context, msg *Message) (*Response, error) {
	body, err := m.resolveBody(msg)
	if err != nil {
		return nil, err
	}

	return m.post(ctx, msg, body)
}

func (m *Mailgun) resolveBody(msg *Message) (string, error) {
	if msg == nil {
		return "", &ValidationError{Field: "message", Reason: "is required"}
	}
	if len(msg.To) == 0 {
		return "", &ValidationError{Field: "to", Reason: "needs at least one recipient"}
	}
	if msg.Template == "" && msg.Body == "" {
		return "", &ValidationError{Field: "body", Reason: "or template must be provided"}
	}

	body := msg.Body
	if msg.Template != "" && msg.Data != nil {
		if body != "" {
			m.logger.Warnw("template output replaces literal body", "template", msg.Template)
		}

		rendered, err := m.renderer.Render(msg.Template, msg.Data)
		if err != nil {
			m.logger.Errorw("failed to render email template", "template", msg.Template, "error", err)
			return "", err
		}
		body = rendered
	}

	if body == "" {
		return "", &ValidationError{Field: "body", Reason: "resolved to an empty string"}
	}
	return body, nil
}

func (m *Mailgun) post(ctx context.Context, msg *Message, body string) (*Response, error) {
	form := url.Values{}
	form.Set("from", msg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)
	form.Set("html", body)
	for name, value := range msg.Variables {
		form.Set("v:"+name, value)
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", m.baseURL, url.PathEscape(m.domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(apiUser, m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Errorw("failed to reach mailgun", "domain", m.domain, "error", err)
		return nil, &DeliveryError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &DeliveryError{Kind: KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := providerMessage(respBody)
		m.logger.Warnw("mailgun rejected message", "domain", m.domain, "status", resp.StatusCode, "message", detail, "recipients", len(msg.To))
		return nil, &DeliveryError{Kind: KindRejected, StatusCode: resp.StatusCode, Message: detail}
	}

	result := &Response{StatusCode: resp.StatusCode}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			// accepted anyway; the body is informational
			m.logger.Warnw("failed to parse mailgun response", "error", err)
		}
	}

	m.logger.Infow("email accepted", "domain", m.domain, "id", result.ID, "recipients", len(msg.To))
	return result, nil
}

// providerMessage extracts {"message": "..."} from an error body, falling back to the raw text
func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
