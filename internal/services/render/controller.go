package render

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/readiness"
	"golang.org/x/sync/semaphore"
)

// CookieStore is the part of the cookie service a render session needs
type CookieStore interface {
	MergeHeader(ctx context.Context, url string, header string) int
	Flush(ctx context.Context) error
}

// ControllerConfig holds the render pipeline settings
type ControllerConfig struct {
	DefaultTimeout        time.Duration
	PollInterval          time.Duration
	MaxPollAttempts       int
	SettleDelay           time.Duration
	Criteria              readiness.Criteria
	MaxConcurrentSessions int
	HostRateLimit         float64 // sessions per second per host, 0 disables
	UserAgent             string  // used when a request carries none
}

// ControllerConfigFrom maps the [render] and [browser] sections
func ControllerConfigFrom(cfg *common.Config) ControllerConfig {
	return ControllerConfig{
		DefaultTimeout:  cfg.Render.DefaultTimeout.Std(),
		PollInterval:    cfg.Render.PollInterval.Std(),
		MaxPollAttempts: cfg.Render.MaxPollAttempts,
		SettleDelay:     cfg.Render.SettleDelay.Std(),
		Criteria: readiness.Criteria{
			MinParagraphs:      cfg.Render.MinParagraphs,
			MinTotalText:       cfg.Render.MinTotalText,
			MinParagraphLength: cfg.Render.MinParagraphLength,
		},
		MaxConcurrentSessions: cfg.Render.MaxConcurrentSessions,
		HostRateLimit:         cfg.Render.HostRateLimit,
		UserAgent:             cfg.Browser.UserAgent,
	}
}

// Controller runs render sessions. Each call to Render gets its own
// session and its own browser surface.
type Controller struct {
	config   ControllerConfig
	factory  interfaces.SurfaceFactory
	cookies  CookieStore
	poller   *Poller
	validate *validator.Validate
	logger   arbor.ILogger

	sessions *semaphore.Weighted
	limiters *hostLimiters // nil when host_rate_limit is 0
	active   atomic.Int64
	total    atomic.Int64
}

// NewController creates a controller. cookies may be nil when no cookie store is wired.
func NewController(config ControllerConfig, factory interfaces.SurfaceFactory, cookies CookieStore, logger arbor.ILogger) *Controller {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 15 * time.Second
	}
	if config.MaxConcurrentSessions <= 0 {
		config.MaxConcurrentSessions = 1
	}
	if config.Criteria == (readiness.Criteria{}) {
		config.Criteria = readiness.DefaultCriteria()
	}

	var limiters *hostLimiters
	if config.HostRateLimit > 0 {
		limiters = newHostLimiters(config.HostRateLimit)
	}

	return &Controller{
		config:   config,
		factory:  factory,
		cookies:  cookies,
		poller:   NewPoller(config.Criteria, config.MaxPollAttempts, config.PollInterval),
		validate: validator.New(),
		logger:   logger,
		sessions: semaphore.NewWeighted(int64(config.MaxConcurrentSessions)),
		limiters: limiters,
	}
}

// Render loads req.TargetURL, cleans the page up, waits for article content
// and returns the final markup. An empty or relative URL, or a request that
// fails validation, yields (nil, nil) without creating a session. Failures
// are *RenderError values matching ErrTimeout, ErrLoad or ErrCancelled.
// The request timeout covers the whole call, including the wait for a
// session slot and for the host's rate budget.
func (c *Controller) Render(ctx context.Context, req models.RenderRequest) (*models.RenderResult, error) {
	if !common.IsAbsoluteURL(req.TargetURL) {
		c.logger.Warn().Str("url", req.TargetURL).Msg("Render skipped: url is empty or not absolute")
		return nil, nil
	}
	if req.TimeoutMillis == 0 {
		req.TimeoutMillis = int(c.config.DefaultTimeout / time.Millisecond)
	}
	if req.UserAgent == "" {
		req.UserAgent = c.config.UserAgent
	}
	if err := c.validate.Struct(req); err != nil {
		c.logger.Warn().Err(err).Str("url", req.TargetURL).Msg("Render skipped: invalid request")
		return nil, nil
	}

	deadline := time.Now().Add(req.Timeout())
	admitCtx, cancelAdmit := context.WithDeadline(ctx, deadline)
	defer cancelAdmit()

	if err := c.admit(admitCtx, req.TargetURL); err != nil {
		return nil, budgetError(ctx, req, err)
	}
	defer c.sessions.Release(1)

	c.active.Add(1)
	defer c.active.Add(-1)
	c.total.Add(1)

	if req.CookieHeader != "" && c.cookies != nil {
		c.cookies.MergeHeader(ctx, req.TargetURL, req.CookieHeader)
		if err := c.cookies.Flush(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to flush cookies before navigation")
		}
	}

	surface, err := c.factory.NewSurface(admitCtx, interfaces.SurfaceOptions{
		UserAgent:         req.UserAgent,
		JavaScriptEnabled: true,
		DOMStorageEnabled: true,
	})
	if err != nil {
		if admitCtx.Err() != nil {
			return nil, budgetError(ctx, req, err)
		}
		return nil, newLoadError(req.TargetURL, "browser surface unavailable", err)
	}

	s := newSession(req, surface, c.poller, c.config.SettleDelay, c.cookies, c.logger)
	s.deadline = deadline
	return s.run(ctx)
}

// ActiveSessions returns the number of sessions currently running
func (c *Controller) ActiveSessions() int64 {
	return c.active.Load()
}

// TotalSessions returns the number of sessions started since creation
func (c *Controller) TotalSessions() int64 {
	return c.total.Load()
}

// Engine names the surface factory in use
func (c *Controller) Engine() string {
	return c.factory.Name()
}

// admit waits for a free session slot and for the host's rate budget
func (c *Controller) admit(ctx context.Context, targetURL string) error {
	if err := c.sessions.Acquire(ctx, 1); err != nil {
		return err
	}

	if c.limiters != nil {
		if err := c.limiters.get(common.HostOf(targetURL)).Wait(ctx); err != nil {
			c.sessions.Release(1)
			return err
		}
	}
	return nil
}

// contextError maps a context failure to a RenderError. Deadline expiry is a timeout.
func contextError(url string, err error) *RenderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RenderError{Kind: KindTimeout, URL: url, Description: "caller deadline exceeded", Err: err}
	}
	return &RenderError{Kind: KindCancelled, URL: url, Description: "caller cancelled", Err: err}
}

// budgetError classifies a failure before the session started. The caller's
// own context wins; otherwise the request ran out of its budget.
func budgetError(ctx context.Context, req models.RenderRequest, err error) *RenderError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(req.TargetURL, ctxErr)
	}
	timeoutErr := newTimeoutError(req.TargetURL, req.Timeout())
	timeoutErr.Err = err
	return timeoutErr
}
