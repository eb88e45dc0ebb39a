package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "rod", cfg.Driver.Backend)
	assert.Equal(t, "http://localhost:4444", cfg.Driver.WebDriverURL)
	assert.Equal(t, "body", cfg.Session.ReadinessSelector)
	assert.Equal(t, "data-runtime-theme", cfg.Session.ReadinessAttribute)
	assert.Equal(t, "default", cfg.Session.ReadinessValue)
	assert.Equal(t, 20*time.Second, cfg.Session.ReadinessTimeout)
	assert.True(t, cfg.Session.PostAuthWait)
	assert.Equal(t, "Login", cfg.Session.LoginMarker)
	assert.Equal(t, "session_id_edsby", cfg.Session.SessionCookie)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORTALSHOT_DRIVER", "webdriver")
	t.Setenv("PORTALSHOT_READY_TIMEOUT", "3s")
	t.Setenv("PORTALSHOT_POST_AUTH_WAIT", "false")
	t.Setenv("PORTALSHOT_API_KEYS", " a, b ,,c")
	t.Setenv("PORTALSHOT_PORT", "not-a-number")
	t.Setenv("PORTALSHOT_USERID", "jdoe")

	cfg := Load()

	assert.Equal(t, "webdriver", cfg.Driver.Backend)
	assert.Equal(t, 3*time.Second, cfg.Session.ReadinessTimeout)
	assert.False(t, cfg.Session.PostAuthWait)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, 8080, cfg.Server.Port, "unparseable values fall back")
	assert.Equal(t, "jdoe", cfg.Credentials.UserID)
}

func TestEnvHeadersOr(t *testing.T) {
	t.Setenv("PORTALSHOT_HEADERS", "Accept-Language: en-CA, X-Trace:abc, broken")

	got := envHeadersOr("PORTALSHOT_HEADERS", nil)
	assert.Equal(t, map[string]string{
		"Accept-Language": "en-CA",
		"X-Trace":         "abc",
	}, got)
}

func TestTargetURL(t *testing.T) {
	s := SessionConfig{BaseURL: "https://bcs.edsby.com/p/District/"}
	assert.Equal(t, "https://bcs.edsby.com/p/District/21471167", s.TargetURL("21471167"))
}
