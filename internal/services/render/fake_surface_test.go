package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/scripts"
)

const testHTML = "<html><head></head><body><article><p>hello</p></article></body></html>"

// fakeSurface answers scripts from a responder on background goroutines,
// the way a real engine delivers callbacks.
type fakeSurface struct {
	mu        sync.Mutex
	listener  interfaces.SurfaceListener
	evaluated []scripts.Kind
	destroyed atomic.Int32
	loadErr   error

	// onLoad runs on its own goroutine after Load; defaults to a single load-finished
	onLoad func(listener interfaces.SurfaceListener, url string)
	// respond answers an evaluation; attempt counts readiness evaluations from 1
	respond func(kind scripts.Kind, attempt int) (string, error)
	polls   int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		onLoad: func(listener interfaces.SurfaceListener, url string) {
			listener.OnLoadFinished(url)
		},
		respond: respondReadyAfter(1),
	}
}

func (f *fakeSurface) SetListener(listener interfaces.SurfaceListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = listener
}

func (f *fakeSurface) Load(url string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.mu.Lock()
	listener := f.listener
	f.mu.Unlock()
	go f.onLoad(listener, url)
	return nil
}

func (f *fakeSurface) EvaluateScript(script string, callback interfaces.ScriptCallback) {
	kind := scripts.Identify(script)

	f.mu.Lock()
	f.evaluated = append(f.evaluated, kind)
	if kind == scripts.KindReadiness {
		f.polls++
	}
	attempt := f.polls
	f.mu.Unlock()

	go func() {
		result, err := f.respond(kind, attempt)
		callback(result, err)
	}()
}

func (f *fakeSurface) Destroy() {
	f.destroyed.Add(1)
}

func (f *fakeSurface) Evaluated() []scripts.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scripts.Kind(nil), f.evaluated...)
}

func (f *fakeSurface) Count(kind scripts.Kind) int {
	n := 0
	for _, k := range f.Evaluated() {
		if k == kind {
			n++
		}
	}
	return n
}

// fakeFactory hands out surfaces built by build
type fakeFactory struct {
	mu       sync.Mutex
	build    func() *fakeSurface
	err      error
	surfaces []*fakeSurface
}

func newFakeFactory(build func() *fakeSurface) *fakeFactory {
	if build == nil {
		build = newFakeSurface
	}
	return &fakeFactory{build: build}
}

func (f *fakeFactory) NewSurface(ctx context.Context, opts interfaces.SurfaceOptions) (interfaces.BrowserSurface, error) {
	if f.err != nil {
		return nil, f.err
	}
	surface := f.build()
	f.mu.Lock()
	f.surfaces = append(f.surfaces, surface)
	f.mu.Unlock()
	return surface, nil
}

func (f *fakeFactory) Name() string {
	return "fake"
}

func (f *fakeFactory) Created() []*fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSurface(nil), f.surfaces...)
}

func readinessPayload(count, total int) string {
	inner := fmt.Sprintf(`{"paragraphCount":%d,"totalTextLength":%d}`, count, total)
	return `"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
}

func jsonString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

// respondReadyAfter reports content on readiness attempt n and never before
func respondReadyAfter(n int) func(scripts.Kind, int) (string, error) {
	return func(kind scripts.Kind, attempt int) (string, error) {
		switch kind {
		case scripts.KindSanitize:
			return `"cleanup-done"`, nil
		case scripts.KindReadiness:
			if n > 0 && attempt >= n {
				return readinessPayload(4, 800), nil
			}
			return readinessPayload(1, 90), nil
		case scripts.KindOuterHTML:
			return jsonString(testHTML), nil
		}
		return "", errors.New("unexpected script")
	}
}
