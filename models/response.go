package models

// CaptureResponse is the response for POST /api/v1/capture.
type CaptureResponse struct {
	// Success indicates whether the capture completed without errors.
	Success bool `json:"success"`

	// URL is the navigation target.
	URL string `json:"url,omitempty"`

	// Title is the captured page title.
	Title string `json:"title,omitempty"`

	// Slug is the filesystem-safe name the files were written under.
	Slug string `json:"slug,omitempty"`

	// Authenticated reports whether the login branch ran.
	Authenticated bool `json:"authenticated"`

	// Files lists the persisted artifact paths.
	Files []string `json:"files,omitempty"`

	// Markup is the captured page source, only when requested.
	Markup string `json:"markup,omitempty"`

	// ScreenshotBytes is the size of the captured screenshot.
	ScreenshotBytes int `json:"screenshot_bytes,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// SessionMs is the time spent driving the browser session.
	SessionMs int64 `json:"session_ms"`

	// PersistMs is the time spent writing artifacts to disk.
	PersistMs int64 `json:"persist_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"` // "healthy" or "busy"
	Uptime    string `json:"uptime"`
	Driver    string `json:"driver"`
	Capturing bool   `json:"capturing"`
	Captures  int64  `json:"captures"`
	Failures  int64  `json:"failures"`
	Version   string `json:"version"`
}
