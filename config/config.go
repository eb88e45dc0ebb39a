package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Driver      DriverConfig
	Session     SessionConfig
	Credentials Credentials
	Output      OutputConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Webhook     WebhookConfig
	Log         LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// DriverConfig selects and configures the browser backend.
type DriverConfig struct {
	// Backend is one of "rod", "webdriver" or "static". default: "rod"
	Backend string

	// ControlURL is the CDP endpoint of an already-running browser
	// (ws://... or http://host:port). When empty the rod backend launches
	// a local Chromium instead.
	ControlURL string

	// WebDriverURL is the remote WebDriver server. default: "http://localhost:4444"
	WebDriverURL string

	// BrowserName is requested from the WebDriver server. default: "firefox"
	BrowserName string

	// Headless controls whether a launched browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// BrowserBin overrides the Chromium binary path for launched browsers.
	BrowserBin string

	// Stealth masks navigator.webdriver and friends (rod only).
	Stealth bool

	// Headers are extra request headers sent with every navigation (rod only).
	// Format: "Name: value" entries, comma separated.
	Headers map[string]string

	// QueryTimeout bounds how long a single element lookup may retry.
	QueryTimeout time.Duration // default: 10s

	// StaticManifest is the site.json describing fixture pages for the
	// static backend.
	StaticManifest string
}

// SessionConfig drives the navigate → ready → login → capture flow.
type SessionConfig struct {
	// BaseURL is prefixed to capture identifiers to build the target URL.
	BaseURL string // default: "https://bcs.edsby.com/p/District/"

	ReadinessSelector  string        // default: "body"
	ReadinessAttribute string        // default: "data-runtime-theme"
	ReadinessValue     string        // default: "default"
	ReadinessTimeout   time.Duration // default: 20s

	// PostAuthWait repeats the readiness wait after the login submit.
	PostAuthWait bool // default: true

	// LoginMarker is the title substring that signals a login challenge.
	LoginMarker string // default: "Login"

	LoginForm     string        // default: "[id='3loginform']"
	LoginInputs   string        // default: "input"
	LoginSubmit   string        // default: "[id='3loginform-login-submit']"
	SubmitTimeout time.Duration // default: 10s

	// SessionCookie is inspected before and after login for diagnostics.
	SessionCookie string // default: "session_id_edsby"

	// CaptureTimeout is the hard deadline for one whole capture.
	CaptureTimeout time.Duration // default: 90s
}

// Credentials are injected into the login form. They come only from the
// environment.
type Credentials struct {
	UserID   string
	Password string
}

// OutputConfig controls artifact persistence.
type OutputConfig struct {
	// Dir is where <slug>.png/.json/.html are written. default: "."
	Dir string

	// Markdown additionally writes a readable <slug>.md rendition.
	Markdown bool

	// MarkdownSelector narrows the markup before conversion when set.
	MarkdownSelector string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 0.5

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// WebhookConfig controls capture event delivery. Disabled when URL is empty.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PORTALSHOT_HOST", "127.0.0.1"),
			Port: envIntOr("PORTALSHOT_PORT", 8080),
			Mode: envOr("PORTALSHOT_MODE", "release"),
		},
		Driver: DriverConfig{
			Backend:        envOr("PORTALSHOT_DRIVER", "rod"),
			ControlURL:     os.Getenv("PORTALSHOT_CONTROL_URL"),
			WebDriverURL:   envOr("PORTALSHOT_WEBDRIVER_URL", "http://localhost:4444"),
			BrowserName:    envOr("PORTALSHOT_BROWSER", "firefox"),
			Headless:       envBoolOr("PORTALSHOT_HEADLESS", true),
			NoSandbox:      envBoolOr("PORTALSHOT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PORTALSHOT_BROWSER_BIN"),
			Stealth:        envBoolOr("PORTALSHOT_STEALTH", false),
			Headers:        envHeadersOr("PORTALSHOT_HEADERS", nil),
			QueryTimeout:   envDurationOr("PORTALSHOT_QUERY_TIMEOUT", 10*time.Second),
			StaticManifest: envOr("PORTALSHOT_STATIC_MANIFEST", "site.json"),
		},
		Session: SessionConfig{
			BaseURL:            envOr("PORTALSHOT_BASE_URL", "https://bcs.edsby.com/p/District/"),
			ReadinessSelector:  envOr("PORTALSHOT_READY_SELECTOR", "body"),
			ReadinessAttribute: envOr("PORTALSHOT_READY_ATTR", "data-runtime-theme"),
			ReadinessValue:     envOr("PORTALSHOT_READY_VALUE", "default"),
			ReadinessTimeout:   envDurationOr("PORTALSHOT_READY_TIMEOUT", 20*time.Second),
			PostAuthWait:       envBoolOr("PORTALSHOT_POST_AUTH_WAIT", true),
			LoginMarker:        envOr("PORTALSHOT_LOGIN_MARKER", "Login"),
			LoginForm:          envOr("PORTALSHOT_LOGIN_FORM", "[id='3loginform']"),
			LoginInputs:        envOr("PORTALSHOT_LOGIN_INPUTS", "input"),
			LoginSubmit:        envOr("PORTALSHOT_LOGIN_SUBMIT", "[id='3loginform-login-submit']"),
			SubmitTimeout:      envDurationOr("PORTALSHOT_SUBMIT_TIMEOUT", 10*time.Second),
			SessionCookie:      envOr("PORTALSHOT_SESSION_COOKIE", "session_id_edsby"),
			CaptureTimeout:     envDurationOr("PORTALSHOT_CAPTURE_TIMEOUT", 90*time.Second),
		},
		Credentials: Credentials{
			UserID:   os.Getenv("PORTALSHOT_USERID"),
			Password: os.Getenv("PORTALSHOT_PASSWORD"),
		},
		Output: OutputConfig{
			Dir:              envOr("PORTALSHOT_OUTPUT_DIR", "."),
			Markdown:         envBoolOr("PORTALSHOT_MARKDOWN", false),
			MarkdownSelector: os.Getenv("PORTALSHOT_MARKDOWN_SELECTOR"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PORTALSHOT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PORTALSHOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PORTALSHOT_RATE_RPS", 0.5),
			Burst:             envIntOr("PORTALSHOT_RATE_BURST", 2),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PORTALSHOT_WEBHOOK_URL"),
			Secret: os.Getenv("PORTALSHOT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PORTALSHOT_LOG_LEVEL", "info"),
			Format: envOr("PORTALSHOT_LOG_FORMAT", "json"),
		},
	}
}

// TargetURL joins the configured base with a caller-supplied identifier.
func (s SessionConfig) TargetURL(id string) string {
	return s.BaseURL + id
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envHeadersOr parses "Name: value" pairs separated by commas.
func envHeadersOr(key string, fallback map[string]string) map[string]string {
	parts := envSliceOr(key, nil)
	if len(parts) == 0 {
		return fallback
	}
	headers := make(map[string]string, len(parts))
	for _, p := range parts {
		name, value, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			headers[name] = strings.TrimSpace(value)
		}
	}
	if len(headers) == 0 {
		return fallback
	}
	return headers
}
