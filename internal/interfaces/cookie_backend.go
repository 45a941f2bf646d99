package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/pagerender/internal/models"
)

// ErrInvalidCookie is returned when a cookie string cannot be parsed
var ErrInvalidCookie = errors.New("invalid cookie")

// CookieBackend is the engine-level cookie store, keyed by URL and domain
type CookieBackend interface {
	// GetCookieHeader returns the "name=value; ..." header applicable to url, or "" when none
	GetCookieHeader(ctx context.Context, url string) (string, error)

	// SetCookie stores a Set-Cookie style string ("name=value; domain=...; path=...") for url
	SetCookie(ctx context.Context, url string, cookie string) error

	// RemoveAll deletes every cookie
	RemoveAll(ctx context.Context) error

	// Flush persists pending changes
	Flush(ctx context.Context) error
}

// CookieSource lists the records a browser tab should carry for a URL
type CookieSource interface {
	CookiesForURL(ctx context.Context, url string) ([]models.CookieRecord, error)
}

// CookieSink accepts cookies observed inside a browser tab
type CookieSink interface {
	StoreRecords(ctx context.Context, records []models.CookieRecord) error
}
