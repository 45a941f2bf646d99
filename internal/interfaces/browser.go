package interfaces

import "context"

// SurfaceOptions configures a browser surface before navigation starts
type SurfaceOptions struct {
	UserAgent         string // Optional user agent override
	JavaScriptEnabled bool
	DOMStorageEnabled bool
}

// SurfaceListener receives navigation events from a browser surface.
// Implementations must tolerate events arriving after the surface was destroyed.
type SurfaceListener interface {
	// OnLoadFinished is called when the main frame finished loading
	OnLoadFinished(url string)

	// OnLoadError is called when the engine reports a navigation failure
	OnLoadError(code int, description string, failingURL string)
}

// ScriptCallback receives the raw (usually JSON-encoded) result of a script evaluation
type ScriptCallback func(result string, err error)

// BrowserSurface is one exclusively owned page of a browser engine
type BrowserSurface interface {
	// SetListener registers the navigation observer; must be called before Load
	SetListener(listener SurfaceListener)

	// Load starts navigation to url and returns without waiting for it to finish
	Load(url string) error

	// EvaluateScript runs script in the current document and reports the result asynchronously
	EvaluateScript(script string, callback ScriptCallback)

	// Destroy releases the surface. Calling it more than once is a no-op.
	Destroy()
}

// SurfaceFactory creates browser surfaces
type SurfaceFactory interface {
	NewSurface(ctx context.Context, opts SurfaceOptions) (BrowserSurface, error)
	Name() string
}
