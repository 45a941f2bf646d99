package handlers

import (
	"context"
	"sync"

	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/services/bridge"
)

// fakeChannel answers calls from a table and blocks "slow" until released or cancelled
type fakeChannel struct {
	mu      sync.Mutex
	results map[string]interface{}
	errs    map[string]error
	render  *models.RenderResult
	release chan struct{}
	calls   []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		results: map[string]interface{}{},
		errs:    map[string]error{},
		release: make(chan struct{}),
	}
}

func (f *fakeChannel) Call(ctx context.Context, method string, args []byte) (interface{}, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method+" "+string(args))
	result, known := f.results[method]
	err := f.errs[method]
	f.mu.Unlock()

	if method == "slow" {
		select {
		case <-f.release:
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, &bridge.Error{Code: bridge.CodeNotImplemented, Message: "unknown " + method}
	}
	return result, nil
}

func (f *fakeChannel) RenderDetailed(ctx context.Context, args []byte) (*models.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "render "+string(args))
	return f.render, f.errs["render"]
}

func (f *fakeChannel) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
