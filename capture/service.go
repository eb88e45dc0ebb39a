// Package capture runs portal captures end to end: session, persistence,
// optional Markdown export and event delivery.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/portalshot/artifact"
	"github.com/use-agent/portalshot/config"
	"github.com/use-agent/portalshot/driver"
	"github.com/use-agent/portalshot/export"
	"github.com/use-agent/portalshot/models"
	"github.com/use-agent/portalshot/session"
	"github.com/use-agent/portalshot/webhook"
)

// Service owns one browser session. Captures are serialised by the
// orchestrator; a request arriving mid-capture fails with SESSION_BUSY.
type Service struct {
	orch      *session.Orchestrator
	store     *artifact.Store
	exporter  *export.Exporter
	notifier  *webhook.Notifier
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time
	captures  atomic.Int64
	failures  atomic.Int64
}

// Stats is a snapshot for the health endpoint.
type Stats struct {
	Backend   string
	Capturing bool
	Captures  int64
	Failures  int64
	Uptime    time.Duration
}

// NewService wires a session over drv according to cfg. A nil logger uses
// slog.Default.
func NewService(drv driver.Driver, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := artifact.NewStore(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	sc := cfg.Session
	auth := session.NewAuthenticator(drv,
		session.Credentials{UserID: cfg.Credentials.UserID, Password: cfg.Credentials.Password},
		session.LoginForm{Form: sc.LoginForm, Inputs: sc.LoginInputs, Submit: sc.LoginSubmit},
		sc.SubmitTimeout, logger)
	orch := session.NewOrchestrator(drv, auth, session.Options{
		Readiness: session.Readiness{
			Selector:  sc.ReadinessSelector,
			Attribute: sc.ReadinessAttribute,
			Value:     sc.ReadinessValue,
			Timeout:   sc.ReadinessTimeout,
		},
		PostAuthWait:  sc.PostAuthWait,
		LoginMarker:   sc.LoginMarker,
		SessionCookie: sc.SessionCookie,
		Logger:        logger,
	})

	s := &Service{
		orch:      orch,
		store:     store,
		exporter:  export.New(cfg.Output.MarkdownSelector, logger),
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
	if cfg.Webhook.URL != "" {
		s.notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, logger)
	}
	return s, nil
}

// Stats reports counters since start.
func (s *Service) Stats() Stats {
	return Stats{
		Backend:   s.cfg.Driver.Backend,
		Capturing: s.orch.Busy(),
		Captures:  s.captures.Load(),
		Failures:  s.failures.Load(),
		Uptime:    time.Since(s.startTime),
	}
}

// Capture navigates to the request's target, persists the artifact and
// returns the response. On failure the response still carries the timing
// and the error is a *models.SessionError.
func (s *Service) Capture(ctx context.Context, req *models.CaptureRequest) (*models.CaptureResponse, error) {
	totalStart := time.Now()
	resp := &models.CaptureResponse{}

	if err := req.Validate(); err != nil {
		se := models.NewSessionError(models.ErrCodeInvalidInput, err.Error(), err)
		resp.Error = se.ToDetail()
		resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
		return resp, se
	}
	resp.URL = req.URL
	if resp.URL == "" {
		resp.URL = s.cfg.Session.TargetURL(req.ID)
	}

	if s.cfg.Session.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Session.CaptureTimeout)
		defer cancel()
	}

	sessionStart := time.Now()
	c, err := s.orch.Capture(ctx, resp.URL)
	resp.Timing.SessionMs = time.Since(sessionStart).Milliseconds()
	if err != nil {
		return s.failed(resp, totalStart, err)
	}

	a := c.Artifact
	resp.Title = a.Title()
	resp.Slug = a.Slug()
	resp.Authenticated = c.Authenticated
	if shot, ok := a.Screenshot(); ok {
		resp.ScreenshotBytes = len(shot)
	}
	if req.IncludeMarkup {
		resp.Markup = a.Markup()
	}

	persistStart := time.Now()
	files, err := s.store.Save(a)
	if err == nil && s.wantMarkdown(req) {
		var path string
		path, err = s.writeMarkdown(a)
		if path != "" {
			files = append(files, path)
		}
	}
	resp.Timing.PersistMs = time.Since(persistStart).Milliseconds()
	resp.Files = files
	if err != nil {
		return s.failed(resp, totalStart, models.NewSessionError(models.ErrCodePersist, "write artifacts", err))
	}

	resp.Success = true
	resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
	s.captures.Add(1)
	s.notify(webhook.EventCaptureCompleted, resp)
	return resp, nil
}

func (s *Service) wantMarkdown(req *models.CaptureRequest) bool {
	if req.Markdown != nil {
		return *req.Markdown
	}
	return s.cfg.Output.Markdown
}

// writeMarkdown renders the export. A render failure is logged and skipped;
// only a failed write is an error.
func (s *Service) writeMarkdown(a *artifact.Artifact) (string, error) {
	md, err := s.exporter.Markdown(a)
	if err != nil {
		s.logger.Warn("markdown export skipped", "slug", a.Slug(), "error", err)
		return "", nil
	}
	return s.store.WriteExtra(a, ".md", []byte(md))
}

func (s *Service) failed(resp *models.CaptureResponse, totalStart time.Time, err error) (*models.CaptureResponse, error) {
	var se *models.SessionError
	if !errors.As(err, &se) {
		se = models.NewSessionError(models.ErrCodeInternal, err.Error(), err)
	}
	resp.Success = false
	resp.Error = se.ToDetail()
	resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
	if se.Code != models.ErrCodeSessionBusy {
		s.failures.Add(1)
	}
	s.notify(webhook.EventCaptureFailed, resp)
	return resp, se
}

func (s *Service) notify(event string, resp *models.CaptureResponse) {
	if s.notifier == nil {
		return
	}
	data := *resp
	data.Markup = ""
	s.notifier.DeliverAsync(webhook.NewEvent(event, resp.URL, resp.Slug, data))
}

// Close cancels pending webhook retries and waits for deliveries in flight.
// The driver is owned by the caller.
func (s *Service) Close() {
	if s.notifier != nil {
		s.notifier.Close()
	}
}
