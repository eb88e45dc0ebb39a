package models

import "errors"

// CaptureRequest is the payload for POST /api/v1/capture.
type CaptureRequest struct {
	// ID is appended to the configured base URL to build the target.
	// Exactly one of ID and URL must be set.
	ID string `json:"id,omitempty"`

	// URL is a full target URL, used verbatim.
	URL string `json:"url,omitempty" binding:"omitempty,url"`

	// Markdown additionally writes a readable <slug>.md rendition.
	// Default: the server's configured value.
	Markdown *bool `json:"markdown,omitempty"`

	// IncludeMarkup returns the captured markup in the response body.
	// Default: false.
	IncludeMarkup bool `json:"include_markup,omitempty"`
}

// Validate checks that exactly one target form was provided.
func (r *CaptureRequest) Validate() error {
	switch {
	case r.ID == "" && r.URL == "":
		return errors.New("one of id or url is required")
	case r.ID != "" && r.URL != "":
		return errors.New("id and url are mutually exclusive")
	}
	return nil
}
