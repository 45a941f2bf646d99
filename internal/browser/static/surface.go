// Package static is a browser surface without a JavaScript engine. It fetches
// the page over HTTP and answers the injected scripts against the parsed markup.
package static

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/readiness"
	"github.com/ternarybob/pagerender/internal/scripts"
)

var (
	ErrNotLoaded     = errors.New("document not loaded")
	ErrUnknownScript = errors.New("script not supported by the static engine")
)

// Factory creates static surfaces sharing one HTTP client
type Factory struct {
	client  *resty.Client
	cookies interfaces.CookieSource
	backend interfaces.CookieBackend
	logger  arbor.ILogger
}

// NewFactory creates a static surface factory. cookies supplies the Cookie
// header and backend receives Set-Cookie responses; either may be nil.
func NewFactory(timeout time.Duration, cookies interfaces.CookieSource, backend interfaces.CookieBackend, logger arbor.ILogger) *Factory {
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Factory{
		client:  client,
		cookies: cookies,
		backend: backend,
		logger:  logger,
	}
}

// Name implements interfaces.SurfaceFactory
func (f *Factory) Name() string {
	return "static"
}

// NewSurface implements interfaces.SurfaceFactory
func (f *Factory) NewSurface(ctx context.Context, opts interfaces.SurfaceOptions) (interfaces.BrowserSurface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	surfaceCtx, cancel := context.WithCancel(context.Background())
	return &surface{
		factory: f,
		opts:    opts,
		ctx:     surfaceCtx,
		cancel:  cancel,
	}, nil
}

type surface struct {
	factory *Factory
	opts    interfaces.SurfaceOptions
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	listener interfaces.SurfaceListener
	doc      *goquery.Document
	started  bool
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
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("surface already loaded")
	}
	s.started = true
	s.mu.Unlock()

	common.SafeGo(s.factory.logger, "static-fetch", func() {
		s.fetch(url, listener)
	})
	return nil
}

func (s *surface) fetch(url string, listener interfaces.SurfaceListener) {
	logger := s.factory.logger
	req := s.factory.client.R().SetContext(s.ctx)
	if s.opts.UserAgent != "" {
		req.SetHeader("User-Agent", s.opts.UserAgent)
	}
	if header := s.cookieHeader(url); header != "" {
		req.SetHeader("Cookie", header)
	}

	resp, err := req.Get(url)
	if err != nil {
		listener.OnLoadError(0, err.Error(), url)
		return
	}

	finalURL := url
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	s.storeCookies(finalURL, resp.Header().Values("Set-Cookie"))

	if resp.StatusCode() >= 400 {
		listener.OnLoadError(resp.StatusCode(), resp.Status(), finalURL)
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		listener.OnLoadError(0, fmt.Sprintf("failed to parse html: %v", err), finalURL)
		return
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	logger.Trace().
		Str("url", finalURL).
		Int("status", resp.StatusCode()).
		Int("bytes", len(resp.Body())).
		Msg("Static page fetched")
	listener.OnLoadFinished(finalURL)
}

func (s *surface) cookieHeader(url string) string {
	if s.factory.cookies == nil {
		return ""
	}
	records, err := s.factory.cookies.CookiesForURL(s.ctx, url)
	if err != nil {
		s.factory.logger.Warn().Err(err).Str("url", url).Msg("Failed to read cookies for request")
		return ""
	}
	pairs := make([]string, 0, len(records))
	for _, record := range records {
		pairs = append(pairs, record.Pair())
	}
	return strings.Join(pairs, "; ")
}

func (s *surface) storeCookies(url string, setCookies []string) {
	if s.factory.backend == nil {
		return
	}
	for _, raw := range setCookies {
		if err := s.factory.backend.SetCookie(s.ctx, url, raw); err != nil {
			s.factory.logger.Debug().Err(err).Str("url", url).Msg("Ignoring Set-Cookie from response")
		}
	}
}

// EvaluateScript answers the known injected scripts from the parsed document
func (s *surface) EvaluateScript(script string, callback interfaces.ScriptCallback) {
	common.SafeGo(s.factory.logger, "static-evaluate", func() {
		callback(s.evaluate(script))
	})
}

func (s *surface) evaluate(script string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return "", ErrNotLoaded
	}

	switch scripts.Identify(script) {
	case scripts.KindSanitize:
		sanitizeDocument(s.doc)
		return encodeString(scripts.SanitizeResult)

	case scripts.KindReadiness:
		minLength := scripts.MinParagraphLength(script)
		if minLength < 0 {
			minLength = readiness.DefaultCriteria().MinParagraphLength
		}
		report := readiness.MeasureDocument(s.doc, readiness.Criteria{MinParagraphLength: minLength})
		inner, err := json.Marshal(map[string]int{
			"paragraphCount":  report.ParagraphCount,
			"totalTextLength": report.TotalTextLength,
		})
		if err != nil {
			return "", err
		}
		return encodeString(string(inner))

	case scripts.KindOuterHTML:
		markup, err := goquery.OuterHtml(s.doc.Selection)
		if err != nil {
			return "", fmt.Errorf("failed to serialize document: %w", err)
		}
		return encodeString(markup)
	}
	return "", ErrUnknownScript
}

// Destroy aborts a pending fetch
func (s *surface) Destroy() {
	s.destroy.Do(s.cancel)
}

// encodeString renders s the way a script engine reports a string result
func encodeString(s string) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
