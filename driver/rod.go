package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// RodOptions configures the CDP backend.
type RodOptions struct {
	// ControlURL attaches to an already-running browser. When empty a local
	// Chromium is launched.
	ControlURL string

	Headless   bool
	NoSandbox  bool
	BrowserBin string

	// Stealth injects go-rod/stealth before every document.
	Stealth bool

	// Headers are sent with every request of the page.
	Headers map[string]string

	// QueryTimeout bounds element lookups; rod retries until it expires.
	QueryTimeout time.Duration
}

// Rod is a Driver speaking the Chrome DevTools Protocol through go-rod.
// It owns a single page for the lifetime of the session.
type Rod struct {
	browser      *rod.Browser
	page         *rod.Page
	launcher     *launcher.Launcher // nil when attached to an existing endpoint
	queryTimeout time.Duration
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Describe() string { return e.el.String() }

// NewRod connects to (or launches) a browser and opens the session page.
func NewRod(opts RodOptions) (*Rod, error) {
	r := &Rod{queryTimeout: opts.QueryTimeout}
	if r.queryTimeout <= 0 {
		r.queryTimeout = 10 * time.Second
	}

	controlURL := opts.ControlURL
	if controlURL != "" {
		resolved, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, &Error{Op: "connect", Err: fmt.Errorf("resolve control url: %w", err)}
		}
		controlURL = resolved
	} else {
		l := launcher.New().
			Headless(opts.Headless).
			NoSandbox(opts.NoSandbox)
		if opts.BrowserBin != "" {
			l = l.Bin(opts.BrowserBin)
		}
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, &Error{Op: "launch", Err: err}
		}
		r.launcher = l
		controlURL = u
		slog.Info("browser launched", "controlURL", controlURL)
	}

	r.browser = rod.New().ControlURL(controlURL)
	if err := r.browser.Connect(); err != nil {
		r.cleanupLauncher()
		return nil, &Error{Op: "connect", Err: err}
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = r.Close()
		return nil, &Error{Op: "connect", Err: fmt.Errorf("create page: %w", err)}
	}
	r.page = page

	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if len(opts.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(opts.Headers)}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}
	return r, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func (r *Rod) element(op string, ref ElementRef) (*rod.Element, error) {
	el, ok := ref.(*rodElement)
	if !ok || el == nil {
		return nil, &Error{Op: op, Err: ErrForeignElement}
	}
	return el.el, nil
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return wrap(OpNavigate, err)
	}
	return wrap(OpNavigate, p.WaitLoad())
}

func (r *Rod) QueryFirst(ctx context.Context, selector string) (ElementRef, error) {
	p := r.page.Context(ctx).Timeout(r.queryTimeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &Error{Op: OpQueryFirst, Err: fmt.Errorf("%w: %s", ErrNoSuchElement, selector)}
		}
		return nil, wrap(OpQueryFirst, err)
	}
	return &rodElement{el: el}, nil
}

func (r *Rod) QueryAll(ctx context.Context, within ElementRef, selector string) ([]ElementRef, error) {
	root, err := r.element(OpQueryAll, within)
	if err != nil {
		return nil, err
	}
	els, err := root.Context(ctx).Elements(selector)
	if err != nil {
		return nil, wrap(OpQueryAll, err)
	}
	refs := make([]ElementRef, 0, len(els))
	for _, el := range els {
		refs = append(refs, &rodElement{el: el})
	}
	return refs, nil
}

func (r *Rod) Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error) {
	el, err := r.element(OpAttribute, ref)
	if err != nil {
		return "", false, err
	}
	v, err := el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, wrap(OpAttribute, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (r *Rod) SendKeys(ctx context.Context, ref ElementRef, text string) error {
	el, err := r.element(OpSendKeys, ref)
	if err != nil {
		return err
	}
	return wrap(OpSendKeys, el.Context(ctx).Input(text))
}

func (r *Rod) Click(ctx context.Context, ref ElementRef) error {
	el, err := r.element(OpClick, ref)
	if err != nil {
		return err
	}
	return wrap(OpClick, el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (r *Rod) WaitUntilAttributeEquals(ctx context.Context, ref ElementRef, name, value string, timeout time.Duration) error {
	el, err := r.element(OpWaitAttribute, ref)
	if err != nil {
		return err
	}
	err = el.Context(ctx).Timeout(timeout).Wait(rod.Eval(`(n, v) => this.getAttribute(n) === v`, name, value))
	return wrap(OpWaitAttribute, err)
}

func (r *Rod) WaitUntilEnabled(ctx context.Context, ref ElementRef, timeout time.Duration) error {
	el, err := r.element(OpWaitEnabled, ref)
	if err != nil {
		return err
	}
	return wrap(OpWaitEnabled, el.Context(ctx).Timeout(timeout).WaitEnabled())
}

func (r *Rod) Cookie(ctx context.Context, name string) (*Cookie, error) {
	cookies, err := r.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, wrap(OpCookie, err)
	}
	for _, c := range cookies {
		if c.Name == name {
			return &Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}, nil
		}
	}
	return nil, nil
}

func (r *Rod) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := r.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	return b, wrap(OpScreenshot, err)
}

func (r *Rod) PageSource(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	return html, wrap(OpPageSource, err)
}

func (r *Rod) Title(ctx context.Context) (string, error) {
	res, err := r.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", wrap(OpTitle, err)
	}
	return res.Value.Str(), nil
}

// Close closes the session page. A browser this driver launched is shut
// down as well; an attached endpoint keeps running.
func (r *Rod) Close() error {
	var errs []error
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			errs = append(errs, err)
		}
		r.page = nil
	}
	if r.launcher != nil {
		if err := r.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		r.cleanupLauncher()
	}
	if err := errors.Join(errs...); err != nil {
		return &Error{Op: OpClose, Err: err}
	}
	return nil
}

func (r *Rod) cleanupLauncher() {
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}
}
