package db

import (
	"strings"
	"time"

	"github.com/hnzhou16/cocraft-notify/internal/env"
)

const (
	// ProductionEnv is the only ENV value that connects to the unsuffixed database
	ProductionEnv = "prod"
	TestingSuffix = "Testing"

	defaultDBName         = "TestDB"
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 10 * time.Second

	connectionParams = "retryWrites=true&w=majority"
	redactedPassword = "xxxxx"
)

type Config struct {
	URL  string
	Name string
	Env  string

	TLS bool
	// AllowInvalidCertificates skips server certificate verification. Only use it
	// against clusters with self-signed certificates.
	AllowInvalidCertificates bool

	ConnectTimeout time.Duration
	PingTimeout    time.Duration
}

// ConfigFromEnv reads DB_NAME, DB_URL and ENV plus the TLS and timeout settings
func ConfigFromEnv() Config {
	return Config{
		URL:                      env.GetString("DB_URL", ""),
		Name:                     env.GetString("DB_NAME", defaultDBName),
		Env:                      env.GetString("ENV", ProductionEnv),
		TLS:                      env.GetBool("DB_TLS", true),
		AllowInvalidCertificates: env.GetBool("DB_TLS_ALLOW_INVALID_CERTS", false),
		ConnectTimeout:           env.GetDuration("DB_CONN_TIME_OUT", defaultConnectTimeout),
		PingTimeout:              defaultPingTimeout,
	}
}

func (c Config) IsProduction() bool {
	return c.Env == ProductionEnv
}

// EnvironmentLabel is used in log lines only
func (c Config) EnvironmentLabel() string {
	if c.IsProduction() {
		return "production"
	}
	return "testing"
}

// EffectiveName appends TestingSuffix to Name outside production
func (c Config) EffectiveName() string {
	if c.IsProduction() {
		return c.Name
	}
	return c.Name + TestingSuffix
}

func (c Config) ConnectionString() string {
	return c.URL + "/" + c.EffectiveName() + "?" + connectionParams
}

// RedactedConnectionString masks the password of the URL user info, if any
func (c Config) RedactedConnectionString() string {
	return redact(c.ConnectionString())
}

func redact(uri string) string {
	scheme, rest := "", uri
	if schemeEnd := strings.Index(uri, "://"); schemeEnd >= 0 {
		scheme, rest = uri[:schemeEnd+3], uri[schemeEnd+3:]
	}

	// user info ends at the last '@' before the path
	authority := rest
	if slash := strings.Index(rest, "/"); slash >= 0 {
		authority = rest[:slash]
	}
	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return uri
	}

	userInfo := authority[:at]
	colon := strings.Index(userInfo, ":")
	if colon < 0 {
		return uri
	}

	return scheme + userInfo[:colon+1] + redactedPassword + rest[at:]
}
