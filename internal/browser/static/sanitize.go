package static

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	overlaySelectors = strings.Join([]string{
		`[class*="paywall"]`,
		`[id*="paywall"]`,
		`[class*="premium"]`,
		`[class*="subscribe-modal"]`,
		`[class*="subscribe-prompt"]`,
		".overlay",
		".modal-backdrop",
	}, ", ")

	lockedSelectors = strings.Join([]string{
		".subscriber-content",
		".premium-content",
		".locked-content",
		`[data-subscriber="true"]`,
	}, ", ")
)

// sanitizeDocument is the markup-only rendition of the sanitize script.
// Without a layout engine only inline styles can be inspected.
func sanitizeDocument(doc *goquery.Document) {
	doc.Find(overlaySelectors).Remove()

	doc.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		if hasBlurFilter(style) {
			el.SetAttr("style", setStyle(style, map[string]string{
				"filter":         "none",
				"-webkit-filter": "none",
			}))
		}
	})

	doc.Find(lockedSelectors).Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		el.SetAttr("style", setStyle(style, map[string]string{
			"display":    "block",
			"visibility": "visible",
			"opacity":    "1",
			"height":     "auto",
		}))
	})

	doc.Find("html, body").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		el.SetAttr("style", setStyle(style, map[string]string{"overflow": "auto"}))
	})
}

// hasBlurFilter reports whether the filter or -webkit-filter declaration applies a blur
func hasBlurFilter(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "filter", "-webkit-filter":
			if strings.Contains(strings.ToLower(value), "blur") {
				return true
			}
		}
	}
	return false
}

// setStyle overrides properties of an inline style declaration, keeping the rest in order
func setStyle(style string, props map[string]string) string {
	var out []string
	for _, decl := range strings.Split(style, ";") {
		name, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if _, replaced := props[strings.ToLower(strings.TrimSpace(name))]; replaced {
			continue
		}
		out = append(out, strings.TrimSpace(decl))
	}
	for _, name := range sortedKeys(props) {
		out = append(out, name+": "+props[name])
	}
	return strings.Join(out, "; ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
