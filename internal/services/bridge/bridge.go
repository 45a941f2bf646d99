// Package bridge dispatches named method calls from a host application to the
// cookie service and the render controller.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/services/render"
	"github.com/tidwall/gjson"
)

// Method names understood by the dispatcher
const (
	MethodGetCookies             = "getCookies"
	MethodSetCookie              = "setCookie"
	MethodClearCookies           = "clearCookies"
	MethodSubmitCookies          = "submitCookies"
	MethodGetAllCookiesForDomain = "getAllCookiesForDomain"
	MethodExportAllCookies       = "exportAllCookies"
	MethodImportCookies          = "importCookies"
	MethodRenderPage             = "renderPage"
)

// Error codes carried by *Error
const (
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeInvalidArgs    = "INVALID_ARGS"
	CodeInternal       = "INTERNAL"
)

// ErrNotImplemented is returned for method names the dispatcher does not know
var ErrNotImplemented = errors.New("method not implemented")

// Error is a failed call as reported to the host
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	err     error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// CookieService is the cookie surface exposed to the host
type CookieService interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url string, cookie string) bool
	ClearAll(ctx context.Context) bool
	Submit(ctx context.Context, url string) (string, bool)
	GetAllForDomain(ctx context.Context, url string) map[string]string
	ExportForDomains(ctx context.Context, domains []string) map[string]map[string]string
	ImportForDomains(ctx context.Context, mapping map[string]map[string]string) int
}

// Renderer runs a page render
type Renderer interface {
	Render(ctx context.Context, req models.RenderRequest) (*models.RenderResult, error)
}

type handlerFunc func(ctx context.Context, args gjson.Result) (interface{}, error)

// Dispatcher routes calls by method name
type Dispatcher struct {
	cookies  CookieService
	renderer Renderer
	logger   arbor.ILogger
	handlers map[string]handlerFunc
}

// NewDispatcher creates a dispatcher over the cookie service and renderer
func NewDispatcher(cookies CookieService, renderer Renderer, logger arbor.ILogger) *Dispatcher {
	d := &Dispatcher{
		cookies:  cookies,
		renderer: renderer,
		logger:   logger,
	}
	d.handlers = map[string]handlerFunc{
		MethodGetCookies:             d.getCookies,
		MethodSetCookie:              d.setCookie,
		MethodClearCookies:           d.clearCookies,
		MethodSubmitCookies:          d.submitCookies,
		MethodGetAllCookiesForDomain: d.getAllCookiesForDomain,
		MethodExportAllCookies:       d.exportAllCookies,
		MethodImportCookies:          d.importCookies,
		MethodRenderPage:             d.renderPage,
	}
	return d
}

// Methods lists the supported method names in sorted order
func (d *Dispatcher) Methods() []string {
	methods := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Call runs method with JSON-object args. A nil result means "absent" to the host.
// Unknown methods yield an *Error with CodeNotImplemented wrapping ErrNotImplemented.
func (d *Dispatcher) Call(ctx context.Context, method string, args []byte) (interface{}, error) {
	handler, ok := d.handlers[method]
	if !ok {
		d.logger.Warn().Str("method", method).Msg("Channel method not implemented")
		return nil, &Error{Code: CodeNotImplemented, Message: fmt.Sprintf("method %q not implemented", method), err: ErrNotImplemented}
	}

	parsed := gjson.ParseBytes(args)
	if len(args) > 0 && (!gjson.ValidBytes(args) || !(parsed.IsObject() || parsed.Type == gjson.Null)) {
		return nil, &Error{Code: CodeInvalidArgs, Message: "arguments must be a JSON object"}
	}

	d.logger.Debug().Str("method", method).Msg("Channel call")
	return handler(ctx, parsed)
}

func (d *Dispatcher) getCookies(ctx context.Context, args gjson.Result) (interface{}, error) {
	url := args.Get("url").String()
	if url == "" {
		return nil, nil
	}
	if header, ok := d.cookies.Get(ctx, url); ok {
		return header, nil
	}
	return nil, nil
}

func (d *Dispatcher) setCookie(ctx context.Context, args gjson.Result) (interface{}, error) {
	url := args.Get("url").String()
	cookie := args.Get("cookie").String()
	if url == "" || cookie == "" {
		return false, nil
	}
	return d.cookies.Set(ctx, url, cookie), nil
}

func (d *Dispatcher) clearCookies(ctx context.Context, _ gjson.Result) (interface{}, error) {
	return d.cookies.ClearAll(ctx), nil
}

func (d *Dispatcher) submitCookies(ctx context.Context, args gjson.Result) (interface{}, error) {
	url := args.Get("url").String()
	if url == "" {
		return nil, nil
	}
	if header, ok := d.cookies.Submit(ctx, url); ok {
		return header, nil
	}
	return nil, nil
}

func (d *Dispatcher) getAllCookiesForDomain(ctx context.Context, args gjson.Result) (interface{}, error) {
	url := args.Get("url").String()
	if url == "" {
		return nil, nil
	}
	return d.cookies.GetAllForDomain(ctx, url), nil
}

func (d *Dispatcher) exportAllCookies(ctx context.Context, args gjson.Result) (interface{}, error) {
	var domains []string
	for _, domain := range args.Get("domains").Array() {
		if s := domain.String(); s != "" {
			domains = append(domains, s)
		}
	}
	return d.cookies.ExportForDomains(ctx, domains), nil
}

func (d *Dispatcher) importCookies(ctx context.Context, args gjson.Result) (interface{}, error) {
	mapping := make(map[string]map[string]string)
	args.Get("cookies").ForEach(func(domain, cookies gjson.Result) bool {
		if !cookies.IsObject() {
			return true
		}
		pairs := make(map[string]string)
		cookies.ForEach(func(name, value gjson.Result) bool {
			if name.String() != "" {
				pairs[name.String()] = value.String()
			}
			return true
		})
		if domain.String() != "" && len(pairs) > 0 {
			mapping[domain.String()] = pairs
		}
		return true
	})
	return d.cookies.ImportForDomains(ctx, mapping), nil
}

func (d *Dispatcher) renderPage(ctx context.Context, args gjson.Result) (interface{}, error) {
	result, err := d.render(ctx, args)
	if err != nil || result == nil {
		return nil, err
	}
	return result.HTML, nil
}

// RenderDetailed runs renderPage and returns the full result instead of the markup only
func (d *Dispatcher) RenderDetailed(ctx context.Context, args []byte) (*models.RenderResult, error) {
	if len(args) > 0 && !gjson.ValidBytes(args) {
		return nil, &Error{Code: CodeInvalidArgs, Message: "arguments must be a JSON object"}
	}
	return d.render(ctx, gjson.ParseBytes(args))
}

func (d *Dispatcher) render(ctx context.Context, args gjson.Result) (*models.RenderResult, error) {
	req := models.RenderRequest{
		TargetURL:           args.Get("url").String(),
		TimeoutMillis:       int(args.Get("timeoutMs").Int()),
		PostLoadDelayMillis: int(args.Get("postLoadDelayMs").Int()),
		UserAgent:           args.Get("userAgent").String(),
		CookieHeader:        args.Get("cookieHeader").String(),
	}
	if req.TargetURL == "" {
		return nil, nil
	}

	result, err := d.renderer.Render(ctx, req)
	if err != nil {
		return nil, toError(err)
	}
	return result, nil
}

// toError maps a render failure to a channel error, the kind becoming the code
func toError(err error) *Error {
	if kind := render.KindOf(err); kind != "" {
		return &Error{Code: string(kind), Message: err.Error(), err: err}
	}
	return &Error{Code: CodeInternal, Message: err.Error(), err: err}
}
