package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeScriptResult(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json string", `"cleanup-done"`, "cleanup-done"},
		{"escaped markup", `"<html>\n<body class=\"a\">hi</body></html>"`, "<html>\n<body class=\"a\">hi</body></html>"},
		{"unicode escapes", `"café"`, "café"},
		{"null", "null", ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"number", "42", "42"},
		{"object", `{"paragraphCount":3}`, `{"paragraphCount":3}`},
		{"invalid json quoted", `"broken \q escape"`, `broken \q escape`},
		{"invalid json bare", `<html></html>`, `<html></html>`},
		{"single quote char", `"`, `"`},
		{"only one layer stripped", `""nested""`, `"nested"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeScriptResult(tt.raw))
		})
	}
}
