package common

import (
	"fmt"
	"net/url"
	"strings"
)

// IsAbsoluteURL reports whether raw parses as an http(s) URL with a host
func IsAbsoluteURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// BaseURL returns scheme://host for raw, or "" when raw cannot be parsed
func BaseURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}

// HostOf returns the lower-cased hostname of raw without the port
func HostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// BareDomain strips a leading "www." and any leading dots
func BareDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimLeft(domain, ".")
	return strings.TrimPrefix(domain, "www.")
}

// DomainVariantURLs expands a domain into the https/http and www/no-www root URLs
// the cookie store is probed with. Order is stable.
func DomainVariantURLs(domain string) []string {
	bare := BareDomain(domain)
	if bare == "" {
		return nil
	}
	hosts := []string{bare, "www." + bare}
	variants := make([]string, 0, 4)
	for _, scheme := range []string{"https", "http"} {
		for _, host := range hosts {
			variants = append(variants, scheme+"://"+host)
		}
	}
	return variants
}
