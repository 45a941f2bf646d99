// -----------------------------------------------------------------------
// Storage interfaces for persisted cookie state
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/pagerender/internal/models"
)

// ErrCookieNotFound is returned when a cookie key has no stored record
var ErrCookieNotFound = errors.New("cookie not found")

// CookieStorage - interface for cookie record persistence
type CookieStorage interface {
	// SaveCookies upserts records by their domain|path|name key
	SaveCookies(ctx context.Context, records []models.CookieRecord) error
	GetCookie(ctx context.Context, key string) (*models.CookieRecord, error)
	LoadCookies(ctx context.Context) ([]models.CookieRecord, error)
	DeleteCookies(ctx context.Context, keys []string) error
	DeleteAllCookies(ctx context.Context) error

	// PurgeExpired removes records whose expiry is before now and returns the count removed
	PurgeExpired(ctx context.Context) (int, error)
	CountCookies(ctx context.Context) (int, error)
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	CookieStorage() CookieStorage
	DB() interface{}
	Close() error
}
