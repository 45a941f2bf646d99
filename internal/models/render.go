package models

import "time"

// RenderMode selects how a session waits for content after the page finishes loading
type RenderMode string

const (
	// RenderModePolling sanitizes immediately and polls the DOM for article content
	RenderModePolling RenderMode = "polling"
	// RenderModeFixedDelay waits a fixed post-load delay before sanitizing and extracting
	RenderModeFixedDelay RenderMode = "fixed_delay"
)

// RenderRequest describes a single page render. It is not modified once a session starts.
type RenderRequest struct {
	TargetURL           string `json:"url" validate:"required,url"`         // Absolute URL to load
	TimeoutMillis       int    `json:"timeout_ms" validate:"gt=0"`          // Hard session budget
	PostLoadDelayMillis int    `json:"post_load_delay_ms" validate:"gte=0"` // >0 selects fixed-delay mode
	UserAgent           string `json:"user_agent,omitempty"`                // Optional UA override
	CookieHeader        string `json:"cookie_header,omitempty"`             // Optional "a=1; b=2" header
}

// Timeout returns the session budget as a duration
func (r RenderRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutMillis) * time.Millisecond
}

// PostLoadDelay returns the fixed post-load delay as a duration
func (r RenderRequest) PostLoadDelay() time.Duration {
	return time.Duration(r.PostLoadDelayMillis) * time.Millisecond
}

// Mode derives the waiting strategy from the request
func (r RenderRequest) Mode() RenderMode {
	if r.PostLoadDelayMillis > 0 {
		return RenderModeFixedDelay
	}
	return RenderModePolling
}

// ReadinessReport is one poll's snapshot of the live document
type ReadinessReport struct {
	HasContent      bool `json:"hasContent"`
	ParagraphCount  int  `json:"paragraphCount"`
	TotalTextLength int  `json:"totalTextLength"`
}

// RenderResult is the successful outcome of a render session
type RenderResult struct {
	URL          string          `json:"url"`
	HTML         string          `json:"html"`
	Ready        bool            `json:"ready"`         // Readiness predicate held before extraction
	PollAttempts int             `json:"poll_attempts"` // Zero in fixed-delay mode
	LastReport   ReadinessReport `json:"last_report"`
	Mode         RenderMode      `json:"mode"`
	SessionID    string          `json:"session_id"`
	Duration     time.Duration   `json:"duration"`
}
