package models

import "time"

// CookieRecord is a single cookie held by the cookie backend
type CookieRecord struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Domain    string    `json:"domain"`    // Lower-case host, no leading dot
	Path      string    `json:"path"`      // Defaults to "/"
	HostOnly  bool      `json:"host_only"` // True when set without a domain attribute
	Secure    bool      `json:"secure"`
	HTTPOnly  bool      `json:"http_only"`
	Expires   time.Time `json:"expires"` // Zero for session cookies
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies a record inside the store. Domain cookies carry a leading
// dot so they never collide with a host-only cookie of the same name.
func (c CookieRecord) Key() string {
	domain := c.Domain
	if !c.HostOnly {
		domain = "." + domain
	}
	return domain + "|" + c.Path + "|" + c.Name
}

// Expired reports whether the record has a past expiry
func (c CookieRecord) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// Pair renders the record as a request-header pair
func (c CookieRecord) Pair() string {
	return c.Name + "=" + c.Value
}
