package static

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/readiness"
	"github.com/ternarybob/pagerender/internal/scripts"
	"github.com/ternarybob/pagerender/internal/services/render"
)

func articlePage(paragraphs int) string {
	var b strings.Builder
	b.WriteString(`<html><body style="overflow: hidden"><div class="paywall-overlay">Subscribe now</div><article>`)
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "<p>%s</p>", strings.Repeat("word ", 40))
	}
	b.WriteString(`</article><div class="locked-content" style="display: none">more</div></body></html>`)
	return b.String()
}

type fakeCookies struct {
	mu      sync.Mutex
	records []models.CookieRecord
	set     []string
}

func (f *fakeCookies) CookiesForURL(ctx context.Context, url string) ([]models.CookieRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func (f *fakeCookies) GetCookieHeader(ctx context.Context, url string) (string, error) {
	return "", nil
}

func (f *fakeCookies) SetCookie(ctx context.Context, url string, cookie string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, cookie)
	return nil
}

func (f *fakeCookies) RemoveAll(ctx context.Context) error { return nil }

func (f *fakeCookies) Flush(ctx context.Context) error { return nil }

func (f *fakeCookies) Set() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.set...)
}

type listener struct {
	finished chan string
	failed   chan int
}

func newListener() *listener {
	return &listener{finished: make(chan string, 1), failed: make(chan int, 1)}
}

func (l *listener) OnLoadFinished(url string) { l.finished <- url }

func (l *listener) OnLoadError(code int, description string, failingURL string) { l.failed <- code }

func evaluate(t *testing.T, s interfaces.BrowserSurface, script string) (string, error) {
	t.Helper()
	type reply struct {
		result string
		err    error
	}
	replies := make(chan reply, 1)
	s.EvaluateScript(script, func(result string, err error) {
		replies <- reply{result, err}
	})
	select {
	case r := <-replies:
		return r.result, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("script callback never fired")
		return "", nil
	}
}

func TestSurfaceLoadAndScripts(t *testing.T) {
	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		http.SetCookie(w, &http.Cookie{Name: "visited", Value: "yes", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage(4)))
	}))
	defer server.Close()

	cookies := &fakeCookies{records: []models.CookieRecord{{Name: "session", Value: "abc"}, {Name: "pref", Value: "dark"}}}
	factory := NewFactory(5*time.Second, cookies, cookies, arbor.NewLogger())
	assert.Equal(t, "static", factory.Name())

	surface, err := factory.NewSurface(context.Background(), interfaces.SurfaceOptions{UserAgent: "pagerender-test"})
	require.NoError(t, err)
	defer surface.Destroy()

	_, err = evaluate(t, surface, scripts.OuterHTML())
	assert.ErrorIs(t, err, ErrNotLoaded)

	l := newListener()
	surface.SetListener(l)
	require.NoError(t, surface.Load(server.URL+"/story"))

	select {
	case url := <-l.finished:
		assert.Equal(t, server.URL+"/story", url)
	case code := <-l.failed:
		t.Fatalf("load failed with %d", code)
	case <-time.After(5 * time.Second):
		t.Fatal("load never finished")
	}

	sent := <-headers
	assert.Equal(t, "session=abc; pref=dark", sent.Get("Cookie"))
	assert.Equal(t, "pagerender-test", sent.Get("User-Agent"))
	assert.Equal(t, []string{"visited=yes; Path=/"}, cookies.Set())
	assert.Error(t, surface.Load(server.URL), "a surface loads once")

	result, err := evaluate(t, surface, scripts.Sanitize())
	require.NoError(t, err)
	assert.Equal(t, `"cleanup-done"`, result)

	result, err = evaluate(t, surface, scripts.Readiness(50))
	require.NoError(t, err)
	report := render.NewPoller(readiness.DefaultCriteria(), 1, 0).Interpret(result, nil)
	assert.Equal(t, 4, report.ParagraphCount)
	assert.True(t, report.HasContent)

	result, err = evaluate(t, surface, scripts.OuterHTML())
	require.NoError(t, err)
	markup := render.DecodeScriptResult(result)
	assert.NotContains(t, markup, "Subscribe now")
	assert.Contains(t, markup, "display: block")
	assert.Contains(t, markup, "overflow: auto")

	_, err = evaluate(t, surface, "return 1;")
	assert.ErrorIs(t, err, ErrUnknownScript)
}

func TestSurfaceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	surface, err := NewFactory(5*time.Second, nil, nil, arbor.NewLogger()).NewSurface(context.Background(), interfaces.SurfaceOptions{})
	require.NoError(t, err)
	defer surface.Destroy()

	l := newListener()
	surface.SetListener(l)
	require.NoError(t, surface.Load(server.URL))

	select {
	case code := <-l.failed:
		assert.Equal(t, http.StatusGone, code)
	case <-l.finished:
		t.Fatal("expected a load error")
	case <-time.After(5 * time.Second):
		t.Fatal("load never completed")
	}
}

func TestSurfaceRequiresListener(t *testing.T) {
	surface, err := NewFactory(time.Second, nil, nil, arbor.NewLogger()).NewSurface(context.Background(), interfaces.SurfaceOptions{})
	require.NoError(t, err)
	assert.Error(t, surface.Load("http://example.com"))
	surface.Destroy()
	surface.Destroy()
}

func TestRenderThroughController(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage(5)))
	}))
	defer server.Close()

	factory := NewFactory(5*time.Second, nil, nil, arbor.NewLogger())
	controller := render.NewController(render.ControllerConfig{
		DefaultTimeout:        5 * time.Second,
		PollInterval:          10 * time.Millisecond,
		MaxPollAttempts:       3,
		MaxConcurrentSessions: 2,
	}, factory, nil, arbor.NewLogger())

	result, err := controller.Render(context.Background(), models.RenderRequest{TargetURL: server.URL})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Ready)
	assert.Equal(t, 1, result.PollAttempts)
	assert.Contains(t, result.HTML, "<article>")
	assert.NotContains(t, result.HTML, "paywall-overlay")
}

func TestSanitizeDocument(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div id="paywall">x</div><p style="color: red; filter: blur(4px)">text</p></body></html>`))
	require.NoError(t, err)

	sanitizeDocument(doc)

	assert.Zero(t, doc.Find("#paywall").Length())
	style, _ := doc.Find("p").Attr("style")
	assert.Equal(t, "color: red; -webkit-filter: none; filter: none", style)
	bodyStyle, _ := doc.Find("body").Attr("style")
	assert.Equal(t, "overflow: auto", bodyStyle)
}

func TestSanitizeDocumentLeavesOtherBlurDeclarations(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><nav style="backdrop-filter: blur(8px)">menu</nav><p style="font-family: Blurb Sans">text</p><div style="-webkit-filter: BLUR(2px)">x</div></body></html>`))
	require.NoError(t, err)

	sanitizeDocument(doc)

	navStyle, _ := doc.Find("nav").Attr("style")
	assert.Equal(t, "backdrop-filter: blur(8px)", navStyle)
	pStyle, _ := doc.Find("p").Attr("style")
	assert.Equal(t, "font-family: Blurb Sans", pStyle)
	divStyle, _ := doc.Find("div").Attr("style")
	assert.Equal(t, "-webkit-filter: none; filter: none", divStyle)
}

func TestHasBlurFilter(t *testing.T) {
	assert.True(t, hasBlurFilter("filter: blur(4px)"))
	assert.True(t, hasBlurFilter("color: red; -webkit-filter: blur(1px) grayscale(1)"))
	assert.False(t, hasBlurFilter("backdrop-filter: blur(4px)"))
	assert.False(t, hasBlurFilter("font-family: blurry; filter: grayscale(1)"))
	assert.False(t, hasBlurFilter(""))
}

func TestSetStyle(t *testing.T) {
	assert.Equal(t, "color: red; filter: none", setStyle("color: red; filter: blur(4px)", map[string]string{"filter": "none"}))
	assert.Equal(t, "overflow: auto", setStyle("", map[string]string{"overflow": "auto"}))
	assert.Equal(t, "overflow: auto", setStyle("OVERFLOW: hidden;", map[string]string{"overflow": "auto"}))
}
