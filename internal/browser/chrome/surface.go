package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
)

const harvestTimeout = 2 * time.Second

// Factory opens Chrome tabs as browser surfaces
type Factory struct {
	pool    *Pool
	cookies interfaces.CookieSource
	sink    interfaces.CookieSink
	logger  arbor.ILogger
}

// NewFactory creates a surface factory over a started pool. cookies seeds each
// tab before navigation and sink receives the tab's cookies on Destroy; either may be nil.
func NewFactory(pool *Pool, cookies interfaces.CookieSource, sink interfaces.CookieSink, logger arbor.ILogger) *Factory {
	return &Factory{
		pool:    pool,
		cookies: cookies,
		sink:    sink,
		logger:  logger,
	}
}

// Name implements interfaces.SurfaceFactory
func (f *Factory) Name() string {
	return "chromedp"
}

// NewSurface opens a new tab on the next browser in the pool
func (f *Factory) NewSurface(ctx context.Context, opts interfaces.SurfaceOptions) (interfaces.BrowserSurface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browserCtx, index, err := f.pool.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	f.logger.Trace().Int("browser_index", index).Msg("Opened browser tab")

	return &surface{
		ctx:     tabCtx,
		cancel:  cancel,
		opts:    opts,
		cookies: f.cookies,
		sink:    f.sink,
		logger:  f.logger,
	}, nil
}

// surface is one Chrome tab. Navigation and script evaluation run on their
// own goroutines and report back through the listener or callback.
type surface struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    interfaces.SurfaceOptions
	cookies interfaces.CookieSource
	sink    interfaces.CookieSink
	logger  arbor.ILogger

	mu       sync.Mutex
	listener interfaces.SurfaceListener
	url      string
	destroy  sync.Once
}

func (s *surface) SetListener(listener interfaces.SurfaceListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
}

func (s *surface) Load(url string) error {
	s.mu.Lock()
	listener := s.listener
	if listener == nil {
		s.mu.Unlock()
		return fmt.Errorf("surface has no listener")
	}
	if s.url != "" {
		s.mu.Unlock()
		return fmt.Errorf("surface already loaded %s", s.url)
	}
	s.url = url
	s.mu.Unlock()

	common.SafeGo(s.logger, "chrome-navigate", func() {
		tasks := chromedp.Tasks{
			emulation.SetScriptExecutionDisabled(!s.opts.JavaScriptEnabled),
		}
		if s.opts.UserAgent != "" {
			tasks = append(tasks, emulation.SetUserAgentOverride(s.opts.UserAgent))
		}
		tasks = append(tasks, s.seedCookies(url)...)
		tasks = append(tasks, chromedp.Navigate(url))

		if err := chromedp.Run(s.ctx, tasks); err != nil {
			listener.OnLoadError(0, err.Error(), url)
			return
		}

		var location string
		if err := chromedp.Run(s.ctx, chromedp.Location(&location)); err != nil || location == "" {
			location = url
		}
		listener.OnLoadFinished(location)
	})
	return nil
}

func (s *surface) EvaluateScript(script string, callback interfaces.ScriptCallback) {
	common.SafeGo(s.logger, "chrome-evaluate", func() {
		var raw []byte
		if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &raw)); err != nil {
			callback("", err)
			return
		}
		callback(string(raw), nil)
	})
}

// Destroy hands the tab's cookies to the sink and closes the tab
func (s *surface) Destroy() {
	s.destroy.Do(func() {
		s.mu.Lock()
		url := s.url
		s.mu.Unlock()

		if url != "" && s.sink != nil {
			s.harvestCookies(url)
		}
		s.cancel()
	})
}

func (s *surface) seedCookies(url string) []chromedp.Action {
	if s.cookies == nil {
		return nil
	}
	records, err := s.cookies.CookiesForURL(s.ctx, url)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Failed to read cookies for tab")
		return nil
	}
	if len(records) > 0 {
		s.logger.Trace().Str("url", url).Int("cookies", len(records)).Msg("Seeding tab cookies")
	}
	return setCookieActions(records, url)
}

func (s *surface) harvestCookies(url string) {
	ctx, cancel := context.WithTimeout(s.ctx, harvestTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{url}).Do(ctx)
		return err
	}))
	if err != nil {
		s.logger.Debug().Err(err).Str("url", url).Msg("Could not read cookies from tab")
		return
	}
	if len(cookies) == 0 {
		return
	}

	if err := s.sink.StoreRecords(context.Background(), toRecords(cookies, time.Now())); err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Failed to store tab cookies")
	}
}
