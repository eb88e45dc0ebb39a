package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
)

// WebDriverOptions configures the W3C WebDriver backend.
type WebDriverOptions struct {
	// URL of the WebDriver server, e.g. geckodriver on http://localhost:4444.
	URL string

	// BrowserName is requested in the session capabilities.
	BrowserName string

	Headless bool

	// QueryTimeout bounds element lookups.
	QueryTimeout time.Duration
}

// WebDriver is a Driver over a remote WebDriver session.
type WebDriver struct {
	wd           selenium.WebDriver
	queryTimeout time.Duration
}

type webElement struct {
	el    selenium.WebElement
	label string
}

func (e *webElement) Describe() string { return e.label }

// NewWebDriver opens a session on the WebDriver server.
func NewWebDriver(opts WebDriverOptions) (*WebDriver, error) {
	browser := opts.BrowserName
	if browser == "" {
		browser = "firefox"
	}
	caps := selenium.Capabilities{"browserName": browser}
	if opts.Headless && browser == "firefox" {
		caps.AddFirefox(firefox.Capabilities{Args: []string{"-headless"}})
	}

	wd, err := selenium.NewRemote(caps, opts.URL)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}

	d := &WebDriver{wd: wd, queryTimeout: opts.QueryTimeout}
	if d.queryTimeout <= 0 {
		d.queryTimeout = 10 * time.Second
	}
	return d, nil
}

// call runs a blocking selenium call while honouring ctx. The selenium client
// has no context support, so a cancelled call keeps running in the
// background until the server answers.
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, wrap(op, ctx.Err())
	case r := <-done:
		return r.v, wrap(op, r.err)
	}
}

// isSeleniumErr reports whether err carries a WebDriver error of the given
// W3C kind, such as "no such element".
func isSeleniumErr(err error, kind string) bool {
	var se *selenium.Error
	return errors.As(err, &se) && se.Err == kind
}

// nullValue is the text tebeka/selenium v0.9.9 returns, unwrapped, from
// stringCommand when the server answers with a null value. GetAttribute
// on an absent attribute takes this path. Recheck on a client upgrade.
const nullValue = "nil return value"

// isAbsentAttr reports whether an attribute read failed only because the
// attribute does not exist.
func isAbsentAttr(err error) bool {
	if err == nil {
		return false
	}
	var se *selenium.Error
	if errors.As(err, &se) {
		return false
	}
	return strings.Contains(err.Error(), nullValue)
}

func (d *WebDriver) element(op string, ref ElementRef) (selenium.WebElement, error) {
	el, ok := ref.(*webElement)
	if !ok || el == nil {
		return nil, &Error{Op: op, Err: ErrForeignElement}
	}
	return el.el, nil
}

func (d *WebDriver) Navigate(ctx context.Context, url string) error {
	_, err := call(ctx, OpNavigate, func() (struct{}, error) {
		return struct{}{}, d.wd.Get(url)
	})
	return err
}

func (d *WebDriver) QueryFirst(ctx context.Context, selector string) (ElementRef, error) {
	var found selenium.WebElement
	err := poll(ctx, d.queryTimeout, func() (bool, error) {
		el, err := d.wd.FindElement(selenium.ByCSSSelector, selector)
		if err != nil {
			if isSeleniumErr(err, "no such element") {
				return false, nil
			}
			return false, err
		}
		found = el
		return true, nil
	})
	if errors.Is(err, ErrTimeout) {
		return nil, &Error{Op: OpQueryFirst, Err: fmt.Errorf("%w: %s", ErrNoSuchElement, selector)}
	}
	if err != nil {
		return nil, wrap(OpQueryFirst, err)
	}
	return &webElement{el: found, label: selector}, nil
}

func (d *WebDriver) QueryAll(ctx context.Context, within ElementRef, selector string) ([]ElementRef, error) {
	root, err := d.element(OpQueryAll, within)
	if err != nil {
		return nil, err
	}
	els, err := call(ctx, OpQueryAll, func() ([]selenium.WebElement, error) {
		return root.FindElements(selenium.ByCSSSelector, selector)
	})
	if err != nil {
		return nil, err
	}
	refs := make([]ElementRef, 0, len(els))
	for i, el := range els {
		refs = append(refs, &webElement{el: el, label: fmt.Sprintf("%s[%d]", selector, i)})
	}
	return refs, nil
}

func (d *WebDriver) Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error) {
	el, err := d.element(OpAttribute, ref)
	if err != nil {
		return "", false, err
	}
	v, err := call(ctx, OpAttribute, func() (string, error) {
		return el.GetAttribute(name)
	})
	if err != nil {
		if isAbsentAttr(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (d *WebDriver) SendKeys(ctx context.Context, ref ElementRef, text string) error {
	el, err := d.element(OpSendKeys, ref)
	if err != nil {
		return err
	}
	_, err = call(ctx, OpSendKeys, func() (struct{}, error) {
		return struct{}{}, el.SendKeys(text)
	})
	return err
}

func (d *WebDriver) Click(ctx context.Context, ref ElementRef) error {
	el, err := d.element(OpClick, ref)
	if err != nil {
		return err
	}
	_, err = call(ctx, OpClick, func() (struct{}, error) {
		return struct{}{}, el.Click()
	})
	return err
}

func (d *WebDriver) WaitUntilAttributeEquals(ctx context.Context, ref ElementRef, name, value string, timeout time.Duration) error {
	el, err := d.element(OpWaitAttribute, ref)
	if err != nil {
		return err
	}
	return wrap(OpWaitAttribute, poll(ctx, timeout, func() (bool, error) {
		v, err := el.GetAttribute(name)
		if err != nil {
			if isAbsentAttr(err) {
				return false, nil
			}
			return false, err
		}
		return v == value, nil
	}))
}

func (d *WebDriver) WaitUntilEnabled(ctx context.Context, ref ElementRef, timeout time.Duration) error {
	el, err := d.element(OpWaitEnabled, ref)
	if err != nil {
		return err
	}
	return wrap(OpWaitEnabled, poll(ctx, timeout, el.IsEnabled))
}

func (d *WebDriver) Cookie(ctx context.Context, name string) (*Cookie, error) {
	c, err := call(ctx, OpCookie, func() (selenium.Cookie, error) {
		return d.wd.GetCookie(name)
	})
	if err != nil {
		if isSeleniumErr(err, "no such cookie") {
			return nil, nil
		}
		return nil, err
	}
	return &Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}, nil
}

func (d *WebDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return call(ctx, OpScreenshot, d.wd.Screenshot)
}

func (d *WebDriver) PageSource(ctx context.Context) (string, error) {
	return call(ctx, OpPageSource, d.wd.PageSource)
}

func (d *WebDriver) Title(ctx context.Context) (string, error) {
	return call(ctx, OpTitle, d.wd.Title)
}

// Close ends the WebDriver session. The server itself keeps running.
func (d *WebDriver) Close() error {
	return wrap(OpClose, d.wd.Quit())
}
