package cookies

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
	"golang.org/x/net/publicsuffix"
)

// Jar is the engine-level cookie backend. Records live in memory and are
// written to storage on Flush. A nil storage keeps the jar memory-only.
type Jar struct {
	mu      sync.RWMutex
	records map[string]models.CookieRecord
	dirty   map[string]struct{}
	deleted map[string]struct{}
	cleared bool

	storage interfaces.CookieStorage
	logger  arbor.ILogger
	now     func() time.Time
}

// NewJar creates a jar backed by storage
func NewJar(storage interfaces.CookieStorage, logger arbor.ILogger) *Jar {
	return &Jar{
		records: make(map[string]models.CookieRecord),
		dirty:   make(map[string]struct{}),
		deleted: make(map[string]struct{}),
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Load replaces the in-memory state with the persisted records, skipping expired ones
func (j *Jar) Load(ctx context.Context) error {
	if j.storage == nil {
		return nil
	}

	records, err := j.storage.LoadCookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	j.records = make(map[string]models.CookieRecord, len(records))
	for _, record := range records {
		if record.Expired(now) {
			j.deleted[record.Key()] = struct{}{}
			continue
		}
		j.records[record.Key()] = record
	}

	j.logger.Debug().Int("count", len(j.records)).Msg("Cookie jar loaded")
	return nil
}

// GetCookieHeader returns the request header for rawURL, or "" when no cookie applies
func (j *Jar) GetCookieHeader(ctx context.Context, rawURL string) (string, error) {
	records, err := j.CookiesForURL(ctx, rawURL)
	if err != nil {
		return "", err
	}

	pairs := make([]string, 0, len(records))
	for _, record := range records {
		pairs = append(pairs, record.Pair())
	}
	return strings.Join(pairs, "; "), nil
}

// CookiesForURL returns the live records that match rawURL, longest path first
func (j *Jar) CookiesForURL(ctx context.Context, rawURL string) ([]models.CookieRecord, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	now := j.now()
	var matched []models.CookieRecord
	for _, record := range j.records {
		if record.Expired(now) {
			continue
		}
		if record.Secure && target.scheme != "https" {
			continue
		}
		if !domainMatches(record, target.host) || !pathMatches(target.path, record.Path) {
			continue
		}
		matched = append(matched, record)
	}

	sort.SliceStable(matched, func(a, b int) bool {
		if len(matched[a].Path) != len(matched[b].Path) {
			return len(matched[a].Path) > len(matched[b].Path)
		}
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.Before(matched[b].CreatedAt)
		}
		return matched[a].Key() < matched[b].Key()
	})

	return matched, nil
}

// SetCookie stores a Set-Cookie style string in the context of rawURL.
// A Max-Age of zero or an expiry in the past deletes the matching record.
func (j *Jar) SetCookie(ctx context.Context, rawURL string, cookie string) error {
	target, err := parseTarget(rawURL)
	if err != nil {
		return err
	}

	parsed, err := parseSetCookie(cookie)
	if err != nil {
		return err
	}

	record, err := j.recordFor(target, parsed)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := record.Key()
	if record.Expired(j.now()) {
		j.removeLocked(key)
		return nil
	}

	if existing, ok := j.records[key]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	j.putLocked(record)
	return nil
}

// StoreRecords merges records observed elsewhere (a browser tab) into the jar
func (j *Jar) StoreRecords(ctx context.Context, records []models.CookieRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, record := range records {
		record.Domain = strings.TrimLeft(strings.ToLower(record.Domain), ".")
		if record.Name == "" || record.Domain == "" {
			continue
		}
		if record.Path == "" {
			record.Path = "/"
		}

		key := record.Key()
		if record.Expired(now) {
			j.removeLocked(key)
			continue
		}
		if existing, ok := j.records[key]; ok {
			record.CreatedAt = existing.CreatedAt
		} else if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		j.putLocked(record)
	}
	return nil
}

// RemoveAll drops every cookie; the storage is cleared on the next Flush
func (j *Jar) RemoveAll(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = make(map[string]models.CookieRecord)
	j.dirty = make(map[string]struct{})
	j.deleted = make(map[string]struct{})
	j.cleared = true
	return nil
}

// PurgeExpired removes expired records from memory and returns the count removed
func (j *Jar) PurgeExpired(ctx context.Context) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	purged := 0
	for key, record := range j.records {
		if record.Expired(now) {
			j.removeLocked(key)
			purged++
		}
	}
	return purged
}

// Len returns the number of records currently held
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Flush writes pending changes to storage
func (j *Jar) Flush(ctx context.Context) error {
	if j.storage == nil {
		return nil
	}

	j.mu.Lock()
	cleared := j.cleared
	toSave := make([]models.CookieRecord, 0, len(j.dirty))
	for key := range j.dirty {
		if record, ok := j.records[key]; ok {
			toSave = append(toSave, record)
		}
	}
	toDelete := make([]string, 0, len(j.deleted))
	for key := range j.deleted {
		toDelete = append(toDelete, key)
	}
	j.cleared = false
	j.dirty = make(map[string]struct{})
	j.deleted = make(map[string]struct{})
	j.mu.Unlock()

	if cleared {
		if err := j.storage.DeleteAllCookies(ctx); err != nil {
			return fmt.Errorf("failed to clear persisted cookies: %w", err)
		}
	}
	if len(toDelete) > 0 {
		if err := j.storage.DeleteCookies(ctx, toDelete); err != nil {
			return fmt.Errorf("failed to delete persisted cookies: %w", err)
		}
	}
	if len(toSave) > 0 {
		if err := j.storage.SaveCookies(ctx, toSave); err != nil {
			return fmt.Errorf("failed to persist cookies: %w", err)
		}
	}

	if cleared || len(toDelete) > 0 || len(toSave) > 0 {
		j.logger.Trace().
			Bool("cleared", cleared).
			Int("saved", len(toSave)).
			Int("deleted", len(toDelete)).
			Msg("Cookie jar flushed")
	}
	return nil
}

func (j *Jar) putLocked(record models.CookieRecord) {
	key := record.Key()
	j.records[key] = record
	j.dirty[key] = struct{}{}
	delete(j.deleted, key)
}

func (j *Jar) removeLocked(key string) {
	delete(j.records, key)
	delete(j.dirty, key)
	j.deleted[key] = struct{}{}
}

// parseSetCookie keeps the leading name=value verbatim. net/http only reads
// the attributes, since its value grammar rejects quotes and non-ASCII text.
func parseSetCookie(cookie string) (*http.Cookie, error) {
	head, attrs, _ := strings.Cut(strings.TrimSpace(cookie), ";")
	name, value, ok := strings.Cut(head, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: expected name=value, got %q", interfaces.ErrInvalidCookie, head)
	}

	parsed, err := http.ParseSetCookie("v=v;" + attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidCookie, err)
	}
	parsed.Name = name
	parsed.Value = strings.TrimSpace(value)
	parsed.Raw = cookie
	return parsed, nil
}

func (j *Jar) recordFor(target *cookieTarget, parsed *http.Cookie) (models.CookieRecord, error) {
	now := j.now()
	record := models.CookieRecord{
		Name:      parsed.Name,
		Value:     parsed.Value,
		Domain:    target.host,
		HostOnly:  true,
		Secure:    parsed.Secure,
		HTTPOnly:  parsed.HttpOnly,
		CreatedAt: now,
	}

	if domain := strings.TrimLeft(strings.ToLower(parsed.Domain), "."); domain != "" {
		if target.host != domain && !strings.HasSuffix(target.host, "."+domain) {
			return record, fmt.Errorf("%w: domain %q does not match host %q", interfaces.ErrInvalidCookie, domain, target.host)
		}
		if suffix, _ := publicsuffix.PublicSuffix(domain); suffix == domain && target.host != domain {
			return record, fmt.Errorf("%w: domain %q is a public suffix", interfaces.ErrInvalidCookie, domain)
		}
		record.Domain = domain
		record.HostOnly = false
	}

	if strings.HasPrefix(parsed.Path, "/") {
		record.Path = parsed.Path
	} else {
		record.Path = defaultPath(target.path)
	}

	switch {
	case parsed.MaxAge < 0:
		record.Expires = now.Add(-time.Second)
	case parsed.MaxAge > 0:
		record.Expires = now.Add(time.Duration(parsed.MaxAge) * time.Second)
	case !parsed.Expires.IsZero():
		record.Expires = parsed.Expires
	}

	return record, nil
}

type cookieTarget struct {
	scheme string
	host   string
	path   string
}

func parseTarget(rawURL string) (*cookieTarget, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidCookie, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", interfaces.ErrInvalidCookie, rawURL)
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return &cookieTarget{scheme: strings.ToLower(parsed.Scheme), host: host, path: path}, nil
}

func domainMatches(record models.CookieRecord, host string) bool {
	if record.HostOnly {
		return host == record.Domain
	}
	return host == record.Domain || strings.HasSuffix(host, "."+record.Domain)
}

func pathMatches(requestPath, cookiePath string) bool {
	if requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

// defaultPath is the directory of the request path
func defaultPath(requestPath string) string {
	if !strings.HasPrefix(requestPath, "/") {
		return "/"
	}
	idx := strings.LastIndex(requestPath, "/")
	if idx == 0 {
		return "/"
	}
	return requestPath[:idx]
}
