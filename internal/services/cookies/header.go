package cookies

import (
	"sort"
	"strings"
)

// Pair is one name=value segment of a cookie header
type Pair struct {
	Name  string
	Value string
}

// String renders the pair as it appears in a header
func (p Pair) String() string {
	return p.Name + "=" + p.Value
}

// SplitHeader splits "a=1; b=2" into trimmed pairs in header order.
// Segments without "=" or with an empty name are dropped.
func SplitHeader(header string) []Pair {
	var pairs []Pair
	for _, segment := range strings.Split(header, ";") {
		segment = strings.TrimSpace(segment)
		name, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		pairs = append(pairs, Pair{Name: name, Value: strings.TrimSpace(value)})
	}
	return pairs
}

// ParseToMap converts a cookie header into name -> value. Later duplicates win.
func ParseToMap(header string) map[string]string {
	result := make(map[string]string)
	for _, pair := range SplitHeader(header) {
		result[pair.Name] = pair.Value
	}
	return result
}

// Serialize renders a name -> value map as a header, sorted by name
func Serialize(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	segments := make([]string, 0, len(names))
	for _, name := range names {
		segments = append(segments, name+"="+cookies[name])
	}
	return strings.Join(segments, "; ")
}

// preview shortens a header for logging
func preview(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
