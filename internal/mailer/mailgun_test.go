package mailer

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type capturedRequest struct {
	method   string
	path     string
	username string
	password string
	form     url.Values
}

// newMailgunServer records every request and answers with status and body
func newMailgunServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	var requests []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		username, password, _ := r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		requests = append(requests, capturedRequest{
			method:   r.Method,
			path:     r.URL.Path,
			username: username,
			password: password,
			form:     r.PostForm,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, &requests, &calls
}

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func newTestMailgun(t *testing.T, baseURL, templatesDir string) *Mailgun {
	t.Helper()

	m, err := NewMailgun(MailgunConfig{
		Domain:       "example.com",
		APIKey:       "key-123",
		BaseURL:      baseURL,
		TemplatesDir: templatesDir,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return m
}

const acceptedBody = `{"id":"<20250101.1@example.com>","message":"Queued. Thank you."}`

func TestNewMailgunMissingCredentials(t *testing.T) {
	testCases := []struct {
		description string
		cfg         MailgunConfig
	}{
		{description: "nothing configured", cfg: MailgunConfig{}},
		{description: "domain only", cfg: MailgunConfig{Domain: "example.com"}},
		{description: "key only", cfg: MailgunConfig{APIKey: "key-123"}},
		{description: "missing template dir is not touched", cfg: MailgunConfig{Domain: "example.com", TemplatesDir: "/does/not/exist"}},
	}

	t.Setenv("MAILGUN_DOMAIN", "")
	t.Setenv("MAILGUN_API_KEY", "")

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			m, err := NewMailgun(tc.cfg, nil)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestNewMailgunFromEnv(t *testing.T) {
	t.Setenv("MAILGUN_DOMAIN", "mg.example.com")
	t.Setenv("MAILGUN_API_KEY", "key-env")
	t.Setenv("MAILGUN_BASE_URL", "https://api.eu.mailgun.net/")

	m, err := NewMailgun(MailgunConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mg.example.com", m.Domain())
	assert.Equal(t, "key-env", m.apiKey)
	assert.Equal(t, "https://api.eu.mailgun.net", m.baseURL)

	// arguments win over the environment
	m, err = NewMailgun(MailgunConfig{Domain: "example.com", APIKey: "key-123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com", m.Domain())
	assert.Equal(t, "key-123", m.apiKey)
}

func TestSendLiteralBody(t *testing.T) {
	server, requests, calls := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, "")

	resp, err := m.Send(context.Background(), &Message{
		From:    "a@x.com",
		To:      []string{"b@x.com"},
		Subject: "Hi",
		Body:    "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "<20250101.1@example.com>", resp.ID)
	assert.Equal(t, "Queued. Thank you.", resp.Message)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.EqualValues(t, 1, calls.Load())
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v3/example.com/messages", req.path)
	assert.Equal(t, "api", req.username)
	assert.Equal(t, "key-123", req.password)
	assert.Equal(t, url.Values{
		"from":    {"a@x.com"},
		"to":      {"b@x.com"},
		"subject": {"Hi"},
		"html":    {"Hello"},
	}, req.form)
}

func TestSendMultipleRecipientsAndVariables(t *testing.T) {
	server, requests, _ := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, "")

	_, err := m.Send(context.Background(), &Message{
		From:      "a@x.com",
		To:        []string{"b@x.com", "c@x.com", "d@x.com"},
		Subject:   "Hi",
		Body:      "Hello",
		Variables: map[string]string{"send-id": "1234"},
	})
	require.NoError(t, err)

	form := (*requests)[0].form
	assert.Equal(t, []string{"b@x.com", "c@x.com", "d@x.com"}, form["to"])
	assert.Equal(t, "1234", form.Get("v:send-id"))
}

func TestSendValidation(t *testing.T) {
	testCases := []struct {
		description string
		msg         *Message
		field       string
	}{
		{description: "nil message", msg: nil, field: "message"},
		{description: "no recipients", msg: &Message{From: "a@x.com", Subject: "Hi", Body: "Hello"}, field: "to"},
		{description: "neither template nor body", msg: &Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "Hi"}, field: "body"},
		{description: "neither template nor body with data", msg: &Message{From: "a@x.com", To: []string{"b@x.com"}, Data: map[string]any{}}, field: "body"},
		{description: "template without data or body", msg: &Message{From: "a@x.com", To: []string{"b@x.com"}, Template: "static.html"}, field: "body"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			server, _, calls := newMailgunServer(t, http.StatusOK, acceptedBody)
			m := newTestMailgun(t, server.URL, writeTemplates(t, map[string]string{"static.html": "<p>Static</p>"}))

			_, err := m.Send(context.Background(), tc.msg)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.EqualValues(t, 0, calls.Load())
		})
	}
}

func TestSendTemplateOverridesBody(t *testing.T) {
	server, requests, _ := newMailgunServer(t, http.StatusOK, acceptedBody)

	core, logs := observer.New(zap.WarnLevel)
	m, err := NewMailgun(MailgunConfig{
		Domain:       "example.com",
		APIKey:       "key-123",
		BaseURL:      server.URL,
		TemplatesDir: writeTemplates(t, map[string]string{"static.html": "<p>Static</p>"}),
	}, zap.New(core).Sugar())
	require.NoError(t, err)

	// an empty but non-nil Data still counts as provided
	_, err = m.Send(context.Background(), &Message{
		From:     "a@x.com",
		To:       []string{"b@x.com"},
		Subject:  "Hi",
		Template: "static.html",
		Data:     map[string]any{},
		Body:     "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "<p>Static</p>", (*requests)[0].form.Get("html"))
	assert.Equal(t, 1, logs.FilterMessage("template output replaces literal body").Len())
}

func TestSendTemplateWithoutDataUsesBody(t *testing.T) {
	server, requests, _ := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, writeTemplates(t, map[string]string{"static.html": "<p>Static</p>"}))

	_, err := m.Send(context.Background(), &Message{
		From:     "a@x.com",
		To:       []string{"b@x.com"},
		Subject:  "Hi",
		Template: "static.html",
		Body:     "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", (*requests)[0].form.Get("html"))
}

func TestSendRendersTemplate(t *testing.T) {
	server, requests, _ := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, writeTemplates(t, map[string]string{
		"greeting.html": "<p>Hi {{ name }}, you have {{ count }} new {% if count == 1 %}reply{% else %}replies{% endif %}.</p>",
	}))

	_, err := m.Send(context.Background(), &Message{
		From:     "a@x.com",
		To:       []string{"b@x.com"},
		Subject:  "Hi",
		Template: "greeting.html",
		Data:     map[string]any{"name": "Ada", "count": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi Ada, you have 2 new replies.</p>", (*requests)[0].form.Get("html"))
}

func TestSendTemplateErrors(t *testing.T) {
	templates := map[string]string{
		"strict.html": "<p>Hi {{ name }}</p>",
		"broken.html": "<p>{% if %}</p>",
	}

	testCases := []struct {
		description string
		template    string
		check       func(t *testing.T, err error)
	}{
		{
			description: "undefined variable",
			template:    "strict.html",
		},
		{
			description: "missing template",
			template:    "missing.html",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, fs.ErrNotExist)
			},
		},
		{
			description: "parse error",
			template:    "broken.html",
		},
		{
			description: "path escape",
			template:    "../strict.html",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidTemplateName)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			server, _, calls := newMailgunServer(t, http.StatusOK, acceptedBody)
			m := newTestMailgun(t, server.URL, writeTemplates(t, templates))

			_, err := m.Send(context.Background(), &Message{
				From:     "a@x.com",
				To:       []string{"b@x.com"},
				Subject:  "Hi",
				Template: tc.template,
				Data:     map[string]any{"unused": true},
				Body:     "fallback is not used",
			})

			var tErr *TemplateError
			require.ErrorAs(t, err, &tErr)
			assert.Equal(t, tc.template, tErr.Template)
			assert.EqualValues(t, 0, calls.Load())
			if tc.check != nil {
				tc.check(t, err)
			}
		})
	}
}

func TestSendRejected(t *testing.T) {
	testCases := []struct {
		description string
		status      int
		body        string
		message     string
		temporary   bool
	}{
		{description: "bad key", status: http.StatusUnauthorized, body: "Forbidden", message: "Forbidden"},
		{description: "bad request", status: http.StatusBadRequest, body: `{"message":"'to' parameter is not a valid address."}`, message: "'to' parameter is not a valid address."},
		{description: "rate limited", status: http.StatusTooManyRequests, body: `{"message":"Too many requests"}`, message: "Too many requests", temporary: true},
		{description: "server error", status: http.StatusBadGateway, body: "", message: "", temporary: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			server, _, calls := newMailgunServer(t, tc.status, tc.body)
			m := newTestMailgun(t, server.URL, "")

			resp, err := m.Send(context.Background(), &Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "Hi", Body: "Hello"})
			assert.Nil(t, resp)

			var dErr *DeliveryError
			require.ErrorAs(t, err, &dErr)
			assert.Equal(t, KindRejected, dErr.Kind)
			assert.Equal(t, tc.status, dErr.StatusCode)
			assert.Equal(t, tc.message, dErr.Message)
			assert.Equal(t, tc.temporary, dErr.Temporary())
			// no retries
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestSendTransportFailure(t *testing.T) {
	server, _, _ := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, "")
	server.Close()

	_, err := m.Send(context.Background(), &Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "Hi", Body: "Hello"})

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, KindTransport, dErr.Kind)
	assert.True(t, dErr.Temporary())
	assert.Error(t, errors.Unwrap(err))
}

func TestSendCanceledContext(t *testing.T) {
	server, _, calls := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, &Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "Hi", Body: "Hello"})

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindTransport, dErr.Kind)
	assert.False(t, dErr.Temporary())
	assert.EqualValues(t, 0, calls.Load())
}

func TestSendEmbeddedTemplate(t *testing.T) {
	server, requests, _ := newMailgunServer(t, http.StatusOK, acceptedBody)
	m := newTestMailgun(t, server.URL, "")

	_, err := m.Send(context.Background(), &Message{
		From:     "a@x.com",
		To:       []string{"b@x.com"},
		Subject:  "Activate your account",
		Template: UserActivateTemplate,
		Data: map[string]any{
			"username":       "Ada Lovelace",
			"activation_url": "https://cocraft.example/activate/abc",
			"expires_in":     "3 days",
		},
	})
	require.NoError(t, err)

	html := (*requests)[0].form.Get("html")
	assert.Contains(t, html, "Hi Ada Lovelace,")
	assert.Contains(t, html, `<a href="https://cocraft.example/activate/abc">`)
	assert.Contains(t, html, "expires in 3 days")
}
