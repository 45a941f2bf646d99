package render

import (
	"fmt"

	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/scripts"
)

// sanitize runs the cleanup script on surface and calls done once it
// settled. An error only means cleanup may not have happened.
func sanitize(surface interfaces.BrowserSurface, done func(err error)) {
	surface.EvaluateScript(scripts.Sanitize(), func(result string, err error) {
		if err == nil {
			if decoded := DecodeScriptResult(result); decoded != scripts.SanitizeResult {
				err = fmt.Errorf("unexpected sanitizer result %q", decoded)
			}
		}
		done(err)
	})
}
