package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	jsoniter "github.com/json-iterator/go"
)

// Operation names used by Static for call accounting and fault injection.
const (
	OpNavigate      = "navigate"
	OpQueryFirst    = "queryFirst"
	OpQueryAll      = "queryAll"
	OpAttribute     = "attribute"
	OpSendKeys      = "sendKeys"
	OpClick         = "click"
	OpWaitAttribute = "waitUntilAttributeEquals"
	OpWaitEnabled   = "waitUntilEnabled"
	OpCookie        = "getCookie"
	OpScreenshot    = "screenshot"
	OpPageSource    = "pageSource"
	OpTitle         = "title"
	OpClose         = "close"
)

// ErrStaleElement is returned when an element from a previous document is
// used after navigation.
var ErrStaleElement = errors.New("stale element reference")

// StaticPage is one fixture document of a static site.
type StaticPage struct {
	// HTML is the document source. When empty, File is read instead.
	HTML string `json:"html,omitempty"`

	// File is a path to the document, relative to the manifest.
	File string `json:"file,omitempty"`

	// Cookies are stored in the jar when the page is loaded.
	Cookies map[string]string `json:"cookies,omitempty"`
}

// Keystroke records one SendKeys call.
type Keystroke struct {
	Element string
	Text    string
}

// Static is a Driver over an in-memory site of HTML documents. Elements are
// resolved with goquery and cascadia. A click on an element carrying a
// data-href attribute navigates there; typing into any element enables
// controls marked data-enable-on-input.
//
// Static never changes a document on its own, so bounded waits either hold
// immediately or time out.
type Static struct {
	mu         sync.Mutex
	pages      map[string]StaticPage
	doc        *goquery.Document
	current    string
	generation int
	jar        map[string]*Cookie
	screenshot []byte
	calls      map[string]int
	faults     map[string]error
	keystrokes []Keystroke
	closed     bool
}

type staticElement struct {
	sel        *goquery.Selection
	generation int
}

func (e *staticElement) Describe() string {
	node := e.sel.Get(0)
	if node == nil {
		return "<none>"
	}
	label := node.Data
	if id, ok := e.sel.Attr("id"); ok {
		label += "#" + id
	}
	if name, ok := e.sel.Attr("name"); ok {
		label += "[name=" + name + "]"
	}
	return label
}

// NewStatic returns a Static serving pages keyed by absolute URL.
func NewStatic(pages map[string]StaticPage) *Static {
	return &Static{
		pages:      pages,
		jar:        make(map[string]*Cookie),
		screenshot: placeholderPNG(),
		calls:      make(map[string]int),
		faults:     make(map[string]error),
	}
}

// staticManifest is the on-disk form of a static site.
type staticManifest struct {
	Pages map[string]StaticPage `json:"pages"`
}

// LoadStaticSite reads a site.json manifest and the documents it references.
func LoadStaticSite(manifest string) (*Static, error) {
	raw, err := os.ReadFile(manifest)
	if err != nil {
		return nil, fmt.Errorf("static: read manifest: %w", err)
	}
	var m staticManifest
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("static: parse manifest: %w", err)
	}
	base := filepath.Dir(manifest)
	for u, p := range m.Pages {
		if p.HTML == "" && p.File != "" {
			body, err := os.ReadFile(filepath.Join(base, p.File))
			if err != nil {
				return nil, fmt.Errorf("static: page %s: %w", u, err)
			}
			p.HTML = string(body)
			m.Pages[u] = p
		}
	}
	return NewStatic(m.Pages), nil
}

// SetScreenshot replaces the bytes returned by Screenshot.
func (s *Static) SetScreenshot(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshot = bytes.Clone(b)
}

// Fail makes every later call of op fail with err. A nil err clears it.
func (s *Static) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Calls reports how many times op was invoked.
func (s *Static) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Keystrokes returns every SendKeys call in order.
func (s *Static) Keystrokes() []Keystroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Keystroke(nil), s.keystrokes...)
}

// CurrentURL is the URL of the loaded document.
func (s *Static) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// enter records the call and returns any injected fault.
func (s *Static) enter(op string) error {
	s.calls[op]++
	if s.closed && op != OpClose {
		return &Error{Op: op, Err: ErrClosed}
	}
	if err, ok := s.faults[op]; ok {
		return wrap(op, err)
	}
	return nil
}

func (s *Static) element(op string, ref ElementRef) (*staticElement, error) {
	el, ok := ref.(*staticElement)
	if !ok || el == nil {
		return nil, &Error{Op: op, Err: ErrForeignElement}
	}
	if el.generation != s.generation {
		return nil, &Error{Op: op, Err: ErrStaleElement}
	}
	return el, nil
}

func (s *Static) Navigate(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpNavigate); err != nil {
		return err
	}
	return s.load(ctx, target)
}

func (s *Static) load(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return wrap(OpNavigate, err)
	}
	page, ok := s.pages[target]
	if !ok {
		return &Error{Op: OpNavigate, Err: fmt.Errorf("no page for %s", target)}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return wrap(OpNavigate, err)
	}
	s.doc = doc
	s.current = target
	s.generation++
	for name, value := range page.Cookies {
		s.jar[name] = &Cookie{Name: name, Value: value, Path: "/", Domain: hostOf(target)}
	}
	return nil
}

func (s *Static) matcher(op, selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("invalid selector %q: %w", selector, err)}
	}
	return m, nil
}

func (s *Static) QueryFirst(ctx context.Context, selector string) (ElementRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpQueryFirst); err != nil {
		return nil, err
	}
	if s.doc == nil {
		return nil, &Error{Op: OpQueryFirst, Err: ErrNoSuchElement}
	}
	m, err := s.matcher(OpQueryFirst, selector)
	if err != nil {
		return nil, err
	}
	found := s.doc.FindMatcher(m).First()
	if found.Length() == 0 {
		return nil, &Error{Op: OpQueryFirst, Err: fmt.Errorf("%w: %s", ErrNoSuchElement, selector)}
	}
	return &staticElement{sel: found, generation: s.generation}, nil
}

func (s *Static) QueryAll(ctx context.Context, within ElementRef, selector string) ([]ElementRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpQueryAll); err != nil {
		return nil, err
	}
	root, err := s.element(OpQueryAll, within)
	if err != nil {
		return nil, err
	}
	m, err := s.matcher(OpQueryAll, selector)
	if err != nil {
		return nil, err
	}
	var refs []ElementRef
	root.sel.FindMatcher(m).Each(func(_ int, sel *goquery.Selection) {
		refs = append(refs, &staticElement{sel: sel, generation: s.generation})
	})
	return refs, nil
}

func (s *Static) Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAttribute); err != nil {
		return "", false, err
	}
	el, err := s.element(OpAttribute, ref)
	if err != nil {
		return "", false, err
	}
	v, ok := el.sel.Attr(name)
	return v, ok, nil
}

func (s *Static) SendKeys(ctx context.Context, ref ElementRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSendKeys); err != nil {
		return err
	}
	el, err := s.element(OpSendKeys, ref)
	if err != nil {
		return err
	}
	el.sel.SetAttr("value", el.sel.AttrOr("value", "")+text)
	s.keystrokes = append(s.keystrokes, Keystroke{Element: el.Describe(), Text: text})
	s.doc.Find("[data-enable-on-input]").RemoveAttr("disabled")
	return nil
}

func (s *Static) Click(ctx context.Context, ref ElementRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpClick); err != nil {
		return err
	}
	el, err := s.element(OpClick, ref)
	if err != nil {
		return err
	}
	if _, disabled := el.sel.Attr("disabled"); disabled {
		return &Error{Op: OpClick, Err: fmt.Errorf("element %s is disabled", el.Describe())}
	}
	href, ok := el.sel.Attr("data-href")
	if !ok {
		return nil
	}
	next, err := resolve(s.current, href)
	if err != nil {
		return wrap(OpClick, err)
	}
	if err := s.load(ctx, next); err != nil {
		return &Error{Op: OpClick, Err: err}
	}
	return nil
}

func (s *Static) WaitUntilAttributeEquals(ctx context.Context, ref ElementRef, name, value string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpWaitAttribute); err != nil {
		return err
	}
	el, err := s.element(OpWaitAttribute, ref)
	if err != nil {
		return err
	}
	return wrap(OpWaitAttribute, poll(ctx, timeout, func() (bool, error) {
		v, ok := el.sel.Attr(name)
		return ok && v == value, nil
	}))
}

func (s *Static) WaitUntilEnabled(ctx context.Context, ref ElementRef, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpWaitEnabled); err != nil {
		return err
	}
	el, err := s.element(OpWaitEnabled, ref)
	if err != nil {
		return err
	}
	return wrap(OpWaitEnabled, poll(ctx, timeout, func() (bool, error) {
		_, disabled := el.sel.Attr("disabled")
		return !disabled, nil
	}))
}

func (s *Static) Cookie(ctx context.Context, name string) (*Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCookie); err != nil {
		return nil, err
	}
	c, ok := s.jar[name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Static) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpScreenshot); err != nil {
		return nil, err
	}
	if s.doc == nil {
		return nil, &Error{Op: OpScreenshot, Err: errors.New("no document loaded")}
	}
	return bytes.Clone(s.screenshot), nil
}

func (s *Static) PageSource(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpPageSource); err != nil {
		return "", err
	}
	if s.doc == nil {
		return "", &Error{Op: OpPageSource, Err: errors.New("no document loaded")}
	}
	html, err := s.doc.Html()
	return html, wrap(OpPageSource, err)
}

func (s *Static) Title(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTitle); err != nil {
		return "", err
	}
	if s.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpClose); err != nil {
		return err
	}
	s.closed = true
	s.doc = nil
	return nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// placeholderPNG renders a small solid image so static captures still carry
// a decodable screenshot.
func placeholderPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 0x2e, G: 0x5c, B: 0x8a, A: 0xff})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
