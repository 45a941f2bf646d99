package render

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DecodeScriptResult turns a raw script-evaluation result into a plain string.
// Engines hand results back JSON-encoded, so a JSON string literal is unwrapped
// once. Other JSON values come back as their JSON text, null as "". Text that
// is not JSON loses one layer of surrounding quotes.
func DecodeScriptResult(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if gjson.Valid(trimmed) {
		value := gjson.Parse(trimmed)
		switch value.Type {
		case gjson.String:
			return value.Str
		case gjson.Null:
			return ""
		default:
			return value.Raw
		}
	}

	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return trimmed[1 : len(trimmed)-1]
	}
	return raw
}
