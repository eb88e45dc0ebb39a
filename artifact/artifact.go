// Package artifact holds the immutable capture record produced by one
// successful session, its JSON form, and its on-disk layout.
package artifact

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyURL is returned by New when no navigation target is given.
var ErrEmptyURL = errors.New("artifact: url must not be empty")

// Artifact is the capture of a single page: the navigation target, the page
// title, the rendered markup and an optional screenshot. It cannot be
// modified once built.
type Artifact struct {
	url        string
	title      string
	markup     string
	screenshot []byte // nil when absent
}

// New builds an Artifact. url must be the exact navigation target. The
// screenshot slice is copied; pass nil when there is none.
func New(url, title, markup string, screenshot []byte) (*Artifact, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	return &Artifact{
		url:        url,
		title:      title,
		markup:     markup,
		screenshot: bytes.Clone(screenshot),
	}, nil
}

func (a *Artifact) URL() string    { return a.url }
func (a *Artifact) Title() string  { return a.title }
func (a *Artifact) Markup() string { return a.markup }

// Screenshot returns a copy of the screenshot bytes and whether one exists.
func (a *Artifact) Screenshot() ([]byte, bool) {
	if a.screenshot == nil {
		return nil, false
	}
	return bytes.Clone(a.screenshot), true
}

// Slug is the filesystem name derived from the title.
func (a *Artifact) Slug() string {
	return ToSlug(a.title)
}

// wire fixes the JSON field order: url, title, markup, screenshot.
// []byte encodes as standard base64 and nil as null.
type wire struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markup     string `json:"markup"`
	Screenshot []byte `json:"screenshot"`
}

func (a *Artifact) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		URL:        a.url,
		Title:      a.title,
		Markup:     a.markup,
		Screenshot: a.screenshot,
	})
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("artifact: decode: %w", err)
	}
	if w.URL == "" {
		return ErrEmptyURL
	}
	*a = Artifact{url: w.URL, title: w.Title, markup: w.Markup, screenshot: w.Screenshot}
	return nil
}

// String renders the artifact as its JSON document.
func (a *Artifact) String() string {
	b, err := a.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("artifact{url=%q}", a.url)
	}
	return string(b)
}
