package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/portalshot/driver"
	"github.com/use-agent/portalshot/models"
)

const (
	loginURL = "https://portal.test/p/District/42"
	homeURL  = "https://portal.test/p/District/42/home"
)

const loginHTML = `<html><head><title>Login - App</title></head>
<body data-runtime-theme="default">
<form id="3loginform">
  <input name="login-userid">
  <input name="login-password" type="password">
  <input name="remember" type="checkbox">
  <input type="hidden">
</form>
<button id="3loginform-login-submit" disabled data-enable-on-input data-href="/p/District/42/home">Log in</button>
</body></html>`

const homeHTML = `<html><head><title>Student Home</title></head>
<body data-runtime-theme="default"><h1>Grades</h1></body></html>`

const dashboardHTML = `<html><head><title>Dashboard</title></head>
<body data-runtime-theme="default"><p>ok</p></body></html>`

var testCreds = Credentials{UserID: "alice", Password: "s3cret"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func portalSite() *driver.Static {
	return driver.NewStatic(map[string]driver.StaticPage{
		loginURL: {HTML: loginHTML},
		homeURL:  {HTML: homeHTML, Cookies: map[string]string{"session_id_edsby": "abc"}},
	})
}

func fastReadiness() Readiness {
	r := DefaultReadiness
	r.Timeout = 30 * time.Millisecond
	return r
}

func newTestOrchestrator(drv driver.Driver, creds Credentials, hook func(from, to State)) *Orchestrator {
	logger := quietLogger()
	auth := NewAuthenticator(drv, creds, DefaultLoginForm, 30*time.Millisecond, logger)
	return NewOrchestrator(drv, auth, Options{
		Readiness:     fastReadiness(),
		PostAuthWait:  true,
		LoginMarker:   DefaultLoginMarker,
		SessionCookie: "session_id_edsby",
		OnTransition:  hook,
		Logger:        logger,
	})
}

func requireSessionError(t *testing.T, err error, code, stage string) *models.SessionError {
	t.Helper()
	var se *models.SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, code, se.Code)
	assert.Equal(t, stage, se.Stage)
	return se
}

func TestClassifyPage(t *testing.T) {
	tests := []struct {
		title  string
		marker string
		want   PageMode
	}{
		{"Login - App", "Login", ModeLoginChallenge},
		{"Please Login", "Login", ModeLoginChallenge},
		{"Dashboard", "Login", ModeReady},
		{"login", "Login", ModeReady},
		{"", "Login", ModeReady},
		{"Login", "", ModeReady},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPage(tt.title, tt.marker))
		})
	}
}

func TestClassifyField(t *testing.T) {
	assert.Equal(t, RoleUserID, ClassifyField("login-userid"))
	assert.Equal(t, RolePassword, ClassifyField("login-password"))
	assert.Equal(t, RoleRemember, ClassifyField("remember"))
	assert.Equal(t, RoleUnknown, ClassifyField(""))
	assert.Equal(t, RoleUnknown, ClassifyField("Login-UserID"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitingPostAuthReady", StateAwaitingPostAuthReady.String())
	assert.Equal(t, "Failed", StateFailed.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateDone.Terminal())
	assert.False(t, StateCapturing.Terminal())
}

func TestPlanSkipsUnknownFields(t *testing.T) {
	ctx := context.Background()
	drv := portalSite()
	require.NoError(t, drv.Navigate(ctx, loginURL))

	auth := NewAuthenticator(drv, testCreds, DefaultLoginForm, time.Second, quietLogger())
	form, err := drv.QueryFirst(ctx, DefaultLoginForm.Form)
	require.NoError(t, err)

	plan, err := auth.Plan(ctx, form)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, RoleUserID, plan[0].Role)
	assert.Equal(t, "alice", plan[0].Value)
	assert.Equal(t, RolePassword, plan[1].Role)
	assert.Equal(t, "s3cret", plan[1].Value)
	assert.Empty(t, drv.Keystrokes())
}

func TestNavigateReadyPageSkipsAuth(t *testing.T) {
	drv := driver.NewStatic(map[string]driver.StaticPage{
		"https://portal.test/p/District/7": {HTML: dashboardHTML},
	})
	o := newTestOrchestrator(drv, testCreds, nil)

	c, err := o.Capture(context.Background(), "https://portal.test/p/District/7")
	require.NoError(t, err)

	assert.False(t, c.Authenticated)
	assert.Equal(t, "Dashboard", c.Artifact.Title())
	assert.Equal(t, "https://portal.test/p/District/7", c.Artifact.URL())
	assert.Contains(t, c.Artifact.Markup(), "<p>ok</p>")
	shot, ok := c.Artifact.Screenshot()
	assert.True(t, ok)
	assert.NotEmpty(t, shot)

	assert.Equal(t, []State{StateInit, StateAwaitingInitialReady, StateDetectingAuth, StateCapturing, StateDone}, c.States)
	assert.Zero(t, drv.Calls(driver.OpQueryAll))
	assert.Zero(t, drv.Calls(driver.OpClick))
	assert.Empty(t, drv.Keystrokes())
}

func TestNavigateResolvesLoginChallenge(t *testing.T) {
	drv := portalSite()
	var seen []State
	o := newTestOrchestrator(drv, testCreds, func(_, to State) { seen = append(seen, to) })

	a, err := o.Navigate(context.Background(), loginURL)
	require.NoError(t, err)

	// The title is the one read before login; markup comes from the page
	// the submit led to.
	assert.Equal(t, "Login - App", a.Title())
	assert.Equal(t, "login - _app", a.Slug())
	assert.Equal(t, 1, drv.Calls(driver.OpTitle))
	assert.Equal(t, loginURL, a.URL())
	assert.Contains(t, a.Markup(), "Grades")
	assert.Equal(t, homeURL, drv.CurrentURL())

	assert.Equal(t, 1, drv.Calls(driver.OpClick))
	assert.Equal(t, []driver.Keystroke{
		{Element: "input[name=login-userid]", Text: "alice"},
		{Element: "input[name=login-password]", Text: "s3cret"},
	}, drv.Keystrokes())

	assert.Equal(t, []State{
		StateAwaitingInitialReady,
		StateDetectingAuth,
		StateAuthInProgress,
		StateAwaitingPostAuthReady,
		StateCapturing,
		StateDone,
	}, seen)
	assert.Equal(t, 2, drv.Calls(driver.OpCookie))
}

func TestNavigateDefaultsLoginMarker(t *testing.T) {
	drv := portalSite()
	logger := quietLogger()
	auth := NewAuthenticator(drv, testCreds, DefaultLoginForm, 30*time.Millisecond, logger)
	o := NewOrchestrator(drv, auth, Options{Readiness: fastReadiness(), Logger: logger})

	c, err := o.Capture(context.Background(), loginURL)
	require.NoError(t, err)

	assert.True(t, c.Authenticated)
	assert.Equal(t, 1, drv.Calls(driver.OpClick))
	assert.Equal(t, homeURL, drv.CurrentURL())
	assert.Contains(t, c.States, StateAuthInProgress)
}

// oneTitle serves the first title and fails every later read.
type oneTitle struct {
	*driver.Static
	reads int
}

func (d *oneTitle) Title(ctx context.Context) (string, error) {
	d.reads++
	if d.reads > 1 {
		return "", errors.New("title read twice")
	}
	return d.Static.Title(ctx)
}

func TestNavigateCapturesWithoutRereadingTitle(t *testing.T) {
	drv := &oneTitle{Static: portalSite()}
	o := newTestOrchestrator(drv, testCreds, nil)

	c, err := o.Capture(context.Background(), loginURL)
	require.NoError(t, err)
	assert.True(t, c.Authenticated)
	assert.Equal(t, "Login - App", c.Artifact.Title())
	assert.Equal(t, 1, drv.reads)
}

func TestNavigateReadinessTimeout(t *testing.T) {
	drv := driver.NewStatic(map[string]driver.StaticPage{
		loginURL: {HTML: `<html><head><title>Login - App</title></head><body></body></html>`},
	})
	o := newTestOrchestrator(drv, testCreds, nil)

	a, err := o.Navigate(context.Background(), loginURL)
	require.Error(t, err)
	assert.Nil(t, a)
	requireSessionError(t, err, models.ErrCodeReadinessTimeout, "AwaitingInitialReady")
	assert.ErrorIs(t, err, driver.ErrTimeout)

	assert.Zero(t, drv.Calls(driver.OpTitle))
	assert.Zero(t, drv.Calls(driver.OpScreenshot))
	assert.Zero(t, drv.Calls(driver.OpPageSource))
	assert.False(t, o.Busy())
}

func TestNavigateMissingReadinessElement(t *testing.T) {
	drv := portalSite()
	logger := quietLogger()
	o := NewOrchestrator(drv, nil, Options{
		Readiness: Readiness{Selector: "#app", Attribute: "data-ready", Value: "1", Timeout: 10 * time.Millisecond},
		Logger:    logger,
	})

	_, err := o.Navigate(context.Background(), homeURL)
	requireSessionError(t, err, models.ErrCodeReadinessTimeout, "AwaitingInitialReady")
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
}

func TestNavigatePostAuthReadinessTimeout(t *testing.T) {
	drv := driver.NewStatic(map[string]driver.StaticPage{
		loginURL: {HTML: loginHTML},
		homeURL:  {HTML: `<html><head><title>Student Home</title></head><body></body></html>`},
	})
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), loginURL)
	requireSessionError(t, err, models.ErrCodeReadinessTimeout, "AwaitingPostAuthReady")
	assert.Equal(t, 1, drv.Calls(driver.OpClick))
	assert.Zero(t, drv.Calls(driver.OpScreenshot))
}

func TestNavigateCaptureFailure(t *testing.T) {
	drv := portalSite()
	drv.Fail(driver.OpScreenshot, errors.New("gpu lost"))
	o := newTestOrchestrator(drv, testCreds, nil)

	c, err := o.Capture(context.Background(), loginURL)
	assert.Nil(t, c)
	requireSessionError(t, err, models.ErrCodeCapture, "Capturing")

	var de *driver.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, driver.OpScreenshot, de.Op)
}

func TestNavigateSubmitNeverEnabled(t *testing.T) {
	html := `<html><head><title>Login - App</title></head>
<body data-runtime-theme="default">
<form id="3loginform"><input name="login-userid"><input name="login-password"></form>
<button id="3loginform-login-submit" disabled>Log in</button>
</body></html>`
	drv := driver.NewStatic(map[string]driver.StaticPage{loginURL: {HTML: html}})
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), loginURL)
	requireSessionError(t, err, models.ErrCodeAuth, "AuthInProgress")
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Zero(t, drv.Calls(driver.OpClick))
	assert.Len(t, drv.Keystrokes(), 2)
}

func TestNavigateMissingLoginForm(t *testing.T) {
	html := `<html><head><title>Login - App</title></head><body data-runtime-theme="default"></body></html>`
	drv := driver.NewStatic(map[string]driver.StaticPage{loginURL: {HTML: html}})
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), loginURL)
	requireSessionError(t, err, models.ErrCodeAuth, "AuthInProgress")
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
}

func TestNavigateWithoutCredentials(t *testing.T) {
	drv := portalSite()
	o := newTestOrchestrator(drv, Credentials{UserID: "alice"}, nil)

	_, err := o.Navigate(context.Background(), loginURL)
	requireSessionError(t, err, models.ErrCodeAuth, "AuthInProgress")
	assert.Empty(t, drv.Keystrokes())
	assert.Zero(t, drv.Calls(driver.OpClick))
}

func TestNavigateDriverFailure(t *testing.T) {
	drv := portalSite()
	drv.Fail(driver.OpNavigate, errors.New("connection refused"))
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), loginURL)
	requireSessionError(t, err, models.ErrCodeDriver, "AwaitingInitialReady")
	assert.Zero(t, drv.Calls(driver.OpQueryFirst))
}

func TestNavigateRejectsEmptyURL(t *testing.T) {
	drv := portalSite()
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), "")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
	assert.Zero(t, drv.Calls(driver.OpNavigate))
}

func TestNavigateRejectsReentry(t *testing.T) {
	drv := portalSite()
	var (
		o        *Orchestrator
		innerErr error
		nested   bool
	)
	o = newTestOrchestrator(drv, testCreds, func(_, to State) {
		if to == StateDetectingAuth && !nested {
			nested = true
			_, innerErr = o.Navigate(context.Background(), homeURL)
		}
	})

	_, err := o.Navigate(context.Background(), loginURL)
	require.NoError(t, err)
	assert.Equal(t, models.ErrCodeSessionBusy, models.CodeOf(innerErr))
	assert.Equal(t, 1, drv.Calls(driver.OpNavigate))
	assert.False(t, o.Busy())

	_, err = o.Navigate(context.Background(), homeURL)
	assert.NoError(t, err)
}

func TestNavigateEmptyScreenshot(t *testing.T) {
	drv := portalSite()
	drv.SetScreenshot(nil)
	o := newTestOrchestrator(drv, testCreds, nil)

	_, err := o.Navigate(context.Background(), homeURL)
	se := requireSessionError(t, err, models.ErrCodeCapture, "Capturing")
	assert.Equal(t, "screenshot is empty", se.Message)
	assert.Equal(t, 1, drv.Calls(driver.OpPageSource))
}
