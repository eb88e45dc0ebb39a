package session

import "strings"

// PageMode is what a freshly loaded page asks of the session.
type PageMode int

const (
	// ModeReady pages can be captured as they are.
	ModeReady PageMode = iota
	// ModeLoginChallenge pages need credentials before the content shows.
	ModeLoginChallenge
)

func (m PageMode) String() string {
	switch m {
	case ModeLoginChallenge:
		return "LoginChallenge"
	default:
		return "Ready"
	}
}

// DefaultLoginMarker is the title fragment of the portal's login page.
const DefaultLoginMarker = "Login"

// ClassifyPage decides the mode from the page title. An empty marker never
// matches.
func ClassifyPage(title, loginMarker string) PageMode {
	if loginMarker != "" && strings.Contains(title, loginMarker) {
		return ModeLoginChallenge
	}
	return ModeReady
}
