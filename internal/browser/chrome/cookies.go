package chrome

import (
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/pagerender/internal/models"
)

// setCookieActions turns stored records into DevTools calls. Host-only
// records are bound to targetURL, domain records to their dotted domain.
func setCookieActions(records []models.CookieRecord, targetURL string) []chromedp.Action {
	actions := make([]chromedp.Action, 0, len(records))
	for _, record := range records {
		params := network.SetCookie(record.Name, record.Value).
			WithPath(record.Path).
			WithSecure(record.Secure).
			WithHTTPOnly(record.HTTPOnly)

		if record.HostOnly {
			params = params.WithURL(targetURL)
		} else {
			params = params.WithDomain("." + record.Domain)
		}
		if !record.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(record.Expires)
			params = params.WithExpires(&expires)
		}
		actions = append(actions, params)
	}
	return actions
}

// toRecords converts cookies read from a tab. Chrome reports domain cookies
// with a leading dot and session cookies with Session set.
func toRecords(cookies []*network.Cookie, now time.Time) []models.CookieRecord {
	records := make([]models.CookieRecord, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}

		record := models.CookieRecord{
			Name:      c.Name,
			Value:     c.Value,
			Domain:    strings.ToLower(strings.TrimPrefix(c.Domain, ".")),
			Path:      c.Path,
			HostOnly:  !strings.HasPrefix(c.Domain, "."),
			Secure:    c.Secure,
			HTTPOnly:  c.HTTPOnly,
			CreatedAt: now,
		}
		if record.Path == "" {
			record.Path = "/"
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			record.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		records = append(records, record)
	}
	return records
}
