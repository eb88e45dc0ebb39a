package session

import (
	"context"
	"time"

	"github.com/use-agent/portalshot/driver"
)

// Readiness describes the DOM condition that signals the client-side app has
// finished bootstrapping: the first element matching Selector carries
// Attribute with exactly Value.
type Readiness struct {
	Selector  string
	Attribute string
	Value     string
	Timeout   time.Duration
}

// DefaultReadiness is the body theme marker set once the portal app is up.
var DefaultReadiness = Readiness{
	Selector:  "body",
	Attribute: "data-runtime-theme",
	Value:     "default",
	Timeout:   20 * time.Second,
}

// ReadinessWaiter blocks on DOM predicates with a bounded timeout.
type ReadinessWaiter struct {
	drv  driver.Driver
	cond Readiness
}

func NewReadinessWaiter(drv driver.Driver, cond Readiness) *ReadinessWaiter {
	return &ReadinessWaiter{drv: drv, cond: cond}
}

// Wait re-locates the readiness element and waits for its attribute. The
// element is looked up on every call because a navigation invalidates
// earlier references.
func (w *ReadinessWaiter) Wait(ctx context.Context) error {
	el, err := w.drv.QueryFirst(ctx, w.cond.Selector)
	if err != nil {
		return err
	}
	return w.drv.WaitUntilAttributeEquals(ctx, el, w.cond.Attribute, w.cond.Value, w.cond.Timeout)
}

// WaitEnabled waits for el to become enabled.
func (w *ReadinessWaiter) WaitEnabled(ctx context.Context, el driver.ElementRef, timeout time.Duration) error {
	return w.drv.WaitUntilEnabled(ctx, el, timeout)
}
