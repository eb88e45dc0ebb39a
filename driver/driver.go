// Package driver defines the capability contract the session core uses to
// steer a live browser, plus the backends that satisfy it.
//
// A Driver is not safe for concurrent use. Every call is expected to come from
// a single flow of control that owns the session for its whole duration.
package driver

import (
	"context"
	"time"
)

// ElementRef is an opaque handle to a DOM element. It is only meaningful to
// the Driver that produced it.
type ElementRef interface {
	// Describe returns a short label for logs (tag, id or name).
	Describe() string
}

// Cookie is the subset of a browser cookie the session inspects.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Driver is the capability surface of a running browser-automation endpoint.
type Driver interface {
	// Navigate loads url in the session's page and returns once the
	// browser reports the document loaded.
	Navigate(ctx context.Context, url string) error

	// QueryFirst returns the first element matching the CSS selector.
	// A missing element yields an error wrapping ErrNoSuchElement.
	QueryFirst(ctx context.Context, selector string) (ElementRef, error)

	// QueryAll returns every element under within matching the selector.
	// An empty result is not an error.
	QueryAll(ctx context.Context, within ElementRef, selector string) ([]ElementRef, error)

	// Attribute reads a DOM attribute. ok is false when it is absent.
	Attribute(ctx context.Context, el ElementRef, name string) (value string, ok bool, err error)

	SendKeys(ctx context.Context, el ElementRef, text string) error
	Click(ctx context.Context, el ElementRef) error

	// WaitUntilAttributeEquals blocks until el's attribute equals value or
	// timeout elapses, in which case the error wraps ErrTimeout.
	WaitUntilAttributeEquals(ctx context.Context, el ElementRef, name, value string, timeout time.Duration) error

	// WaitUntilEnabled blocks until el is enabled or timeout elapses.
	WaitUntilEnabled(ctx context.Context, el ElementRef, timeout time.Duration) error

	// Cookie returns the named cookie, or nil when the browser has none.
	Cookie(ctx context.Context, name string) (*Cookie, error)

	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Close releases the session. It does not kill a browser the driver
	// merely attached to.
	Close() error
}
