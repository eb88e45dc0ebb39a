// Package session drives one browser session through readiness, an optional
// login challenge and the final capture.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/portalshot/artifact"
	"github.com/use-agent/portalshot/driver"
	"github.com/use-agent/portalshot/models"
)

// Options tune an Orchestrator. Zero values fall back to the portal defaults
// where one exists.
type Options struct {
	Readiness Readiness

	// PostAuthWait re-checks readiness after the login submit.
	PostAuthWait bool

	// LoginMarker is the title fragment that marks a login challenge. Empty
	// uses DefaultLoginMarker.
	LoginMarker string

	// SessionCookie is inspected for diagnostics only. Empty disables it.
	SessionCookie string

	// OnTransition observes every state change.
	OnTransition func(from, to State)

	Logger *slog.Logger
}

// Capture is the outcome of a successful navigation.
type Capture struct {
	Artifact      *artifact.Artifact
	Authenticated bool
	States        []State
	Elapsed       time.Duration
}

// Orchestrator runs navigations on one driver, one at a time. A driver must
// not be shared between orchestrators.
type Orchestrator struct {
	drv    driver.Driver
	auth   *Authenticator
	waiter *ReadinessWaiter
	opts   Options
	logger *slog.Logger
	busy   atomic.Bool
}

// NewOrchestrator binds drv and auth. auth may be nil, in which case a login
// challenge fails the navigation.
func NewOrchestrator(drv driver.Driver, auth *Authenticator, opts Options) *Orchestrator {
	if opts.Readiness.Selector == "" {
		opts.Readiness = DefaultReadiness
	}
	if opts.LoginMarker == "" {
		opts.LoginMarker = DefaultLoginMarker
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		drv:    drv,
		auth:   auth,
		waiter: NewReadinessWaiter(drv, opts.Readiness),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Busy reports whether a navigation is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Navigate loads url, resolves a login challenge if one appears, and
// returns the captured artifact.
func (o *Orchestrator) Navigate(ctx context.Context, url string) (*artifact.Artifact, error) {
	c, err := o.Capture(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.Artifact, nil
}

// Capture is Navigate with the run's bookkeeping. A second call while one
// is in flight fails with SESSION_BUSY without touching the driver.
func (o *Orchestrator) Capture(ctx context.Context, url string) (*Capture, error) {
	if url == "" {
		return nil, models.NewSessionError(models.ErrCodeInvalidInput, "url is required", artifact.ErrEmptyURL)
	}
	if !o.busy.CompareAndSwap(false, true) {
		return nil, models.NewSessionError(models.ErrCodeSessionBusy, "a navigation is already in progress", nil)
	}
	defer o.busy.Store(false)

	r := &run{o: o, url: url, start: time.Now(), states: []State{StateInit}}
	a, err := r.execute(ctx)
	if err != nil {
		o.logger.Warn("navigation failed", "url", url, "stage", stageOf(err), "error", err)
		return nil, err
	}
	o.logger.Info("navigation captured", "url", url, "title", a.Title(), "authenticated", r.authenticated, "elapsed", time.Since(r.start))
	return &Capture{
		Artifact:      a,
		Authenticated: r.authenticated,
		States:        r.states,
		Elapsed:       time.Since(r.start),
	}, nil
}

func stageOf(err error) string {
	var se *models.SessionError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// run is the state of one navigation.
type run struct {
	o             *Orchestrator
	url           string
	start         time.Time
	state         State
	states        []State
	authenticated bool
}

func (r *run) to(next State) {
	from := r.state
	r.state = next
	r.states = append(r.states, next)
	r.o.logger.Debug("session transition", "from", from.String(), "to", next.String(), "url", r.url)
	if r.o.opts.OnTransition != nil {
		r.o.opts.OnTransition(from, next)
	}
}

// fail records the stage and moves to Failed. An error that already carries
// a code keeps it.
func (r *run) fail(code, msg string, err error) error {
	var se *models.SessionError
	if errors.As(err, &se) {
		se.Stage = r.state.String()
	} else {
		se = &models.SessionError{Code: code, Message: msg, Stage: r.state.String(), Err: err}
	}
	r.to(StateFailed)
	return se
}

// driverFail classifies a driver error outside of readiness waits.
func (r *run) driverFail(msg string, err error) error {
	if driver.IsTimeout(err) {
		return r.fail(models.ErrCodeTimeout, msg, err)
	}
	return r.fail(models.ErrCodeDriver, msg, err)
}

// awaitReady runs the readiness wait. A missing or unchanged marker both mean
// the app never came up.
func (r *run) awaitReady(ctx context.Context) error {
	err := r.o.waiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if driver.IsTimeout(err) || errors.Is(err, driver.ErrNoSuchElement) {
		return r.fail(models.ErrCodeReadinessTimeout, "page did not become ready", err)
	}
	return r.fail(models.ErrCodeDriver, "readiness check failed", err)
}

func (r *run) execute(ctx context.Context) (*artifact.Artifact, error) {
	o := r.o

	r.to(StateAwaitingInitialReady)
	if err := o.drv.Navigate(ctx, r.url); err != nil {
		return nil, r.driverFail("navigation failed", err)
	}
	if err := r.awaitReady(ctx); err != nil {
		return nil, err
	}

	r.to(StateDetectingAuth)
	title, err := o.drv.Title(ctx)
	if err != nil {
		return nil, r.driverFail("read title", err)
	}
	o.inspectCookie(ctx, "before login")

	if ClassifyPage(title, o.opts.LoginMarker) == ModeLoginChallenge {
		r.to(StateAuthInProgress)
		if o.auth == nil {
			return nil, r.fail(models.ErrCodeAuth, "login required but no authenticator configured", nil)
		}
		if err := o.auth.Resolve(ctx); err != nil {
			return nil, r.fail(models.ErrCodeAuth, "login failed", err)
		}
		r.authenticated = true

		r.to(StateAwaitingPostAuthReady)
		o.inspectCookie(ctx, "after login")
		if o.opts.PostAuthWait {
			if err := r.awaitReady(ctx); err != nil {
				return nil, err
			}
		}
	}

	// The artifact keeps the title read in DetectingAuth, also after a login.
	r.to(StateCapturing)
	markup, err := o.drv.PageSource(ctx)
	if err != nil {
		return nil, r.fail(models.ErrCodeCapture, "read page source", err)
	}
	shot, err := o.drv.Screenshot(ctx)
	if err != nil {
		return nil, r.fail(models.ErrCodeCapture, "take screenshot", err)
	}
	if len(shot) == 0 {
		return nil, r.fail(models.ErrCodeCapture, "screenshot is empty", nil)
	}
	a, err := artifact.New(r.url, title, markup, shot)
	if err != nil {
		return nil, r.fail(models.ErrCodeCapture, "build artifact", err)
	}

	r.to(StateDone)
	return a, nil
}

// inspectCookie logs whether the session cookie is present. It never fails
// the navigation and never logs the value.
func (o *Orchestrator) inspectCookie(ctx context.Context, phase string) {
	if o.opts.SessionCookie == "" {
		return
	}
	c, err := o.drv.Cookie(ctx, o.opts.SessionCookie)
	switch {
	case err != nil:
		o.logger.Warn("session cookie check failed", "phase", phase, "error", err)
	case c == nil || c.Value == "":
		o.logger.Info("session cookie absent", "phase", phase, "cookie", o.opts.SessionCookie)
	default:
		o.logger.Debug("session cookie present", "phase", phase, "cookie", c.Name, "domain", c.Domain)
	}
}
