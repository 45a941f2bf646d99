package cookies

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
)

// Service adapts a CookieBackend to the header-oriented operations used by
// the render pipeline and the bridge
type Service struct {
	backend interfaces.CookieBackend
	logger  arbor.ILogger
}

// NewService creates a cookie service over backend
func NewService(backend interfaces.CookieBackend, logger arbor.ILogger) *Service {
	return &Service{
		backend: backend,
		logger:  logger,
	}
}

// Get returns the cookie header for url; ok is false when none applies or the lookup fails
func (s *Service) Get(ctx context.Context, url string) (string, bool) {
	header, err := s.backend.GetCookieHeader(ctx, url)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Failed to read cookies")
		return "", false
	}
	if header == "" {
		return "", false
	}
	return header, true
}

// Set stores a single Set-Cookie style string for url
func (s *Service) Set(ctx context.Context, url string, cookie string) bool {
	if err := s.backend.SetCookie(ctx, url, cookie); err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Failed to set cookie")
		return false
	}
	return true
}

// ClearAll removes every cookie and persists the empty store
func (s *Service) ClearAll(ctx context.Context) bool {
	if err := s.backend.RemoveAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear cookies")
		return false
	}
	if err := s.backend.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to flush cookie store after clear")
	}
	return true
}

// Flush persists the backend
func (s *Service) Flush(ctx context.Context) error {
	return s.backend.Flush(ctx)
}

// MergeHeader applies each name=value pair of header to url and to its
// scheme+host base, so both host-only and path-scoped lookups find it.
// Returns the number of pairs applied.
func (s *Service) MergeHeader(ctx context.Context, url string, header string) int {
	pairs := SplitHeader(header)
	if len(pairs) == 0 {
		return 0
	}

	base := common.BaseURL(url)
	applied := 0
	for _, pair := range pairs {
		ok := s.Set(ctx, url, pair.String())
		if base != "" && base != url {
			ok = s.Set(ctx, base, pair.String()) || ok
		}
		if ok {
			applied++
		}
	}

	stored, _ := s.Get(ctx, url)
	s.logger.Debug().
		Str("url", url).
		Int("applied", applied).
		Int("stored", len(SplitHeader(stored))).
		Str("preview", preview(stored, 200)).
		Msg("Cookie header merged")

	return applied
}

// GetAllForDomain returns the cookies visible at url as name -> value.
// An unreadable store yields an empty map.
func (s *Service) GetAllForDomain(ctx context.Context, url string) map[string]string {
	header, _ := s.Get(ctx, url)
	return ParseToMap(header)
}

// Submit flushes the store and returns the cookies now visible at url
func (s *Service) Submit(ctx context.Context, url string) (string, bool) {
	if err := s.backend.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to flush cookie store on submit")
	}
	return s.Get(ctx, url)
}

// ExportForDomains probes each domain under its https/http and www/bare
// variants and unions what it finds
func (s *Service) ExportForDomains(ctx context.Context, domains []string) map[string]map[string]string {
	result := make(map[string]map[string]string, len(domains))
	for _, domain := range domains {
		found := make(map[string]string)
		for _, variant := range common.DomainVariantURLs(domain) {
			header, ok := s.Get(ctx, variant)
			if !ok {
				continue
			}
			for name, value := range ParseToMap(header) {
				found[name] = value
			}
		}
		if len(found) > 0 {
			result[domain] = found
		}
	}

	s.logger.Debug().Int("domains", len(domains)).Int("exported", len(result)).Msg("Cookies exported")
	return result
}

// ImportForDomains writes every cookie under each domain variant twice:
// once with a wildcard domain attribute and once host-exact. Engines
// disagree on how they scope cookies and one of the two always matches.
// Returns the number of cookies stored at least once.
func (s *Service) ImportForDomains(ctx context.Context, mapping map[string]map[string]string) int {
	imported := 0
	for domain, cookies := range mapping {
		bare := common.BareDomain(domain)
		variants := common.DomainVariantURLs(domain)
		for name, value := range cookies {
			stored := false
			for _, variant := range variants {
				pair := name + "=" + value
				if s.Set(ctx, variant, pair+"; domain=."+bare+"; path=/") {
					stored = true
				}
				if s.Set(ctx, variant, pair+"; path=/") {
					stored = true
				}
			}
			if stored {
				imported++
			}
		}
	}

	if err := s.backend.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to flush cookie store after import")
	}

	s.logger.Debug().Int("domains", len(mapping)).Int("imported", imported).Msg("Cookies imported")
	return imported
}
