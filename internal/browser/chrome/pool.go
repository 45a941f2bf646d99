package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
)

// Pool keeps a fixed set of Chrome processes alive. Surfaces are opened as
// tabs on them, handed out round-robin.
type Pool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	next             int
	config           common.BrowserConfig
	logger           arbor.ILogger
	initialized      bool
}

// PoolStats describes the pool for the health endpoint
type PoolStats struct {
	Initialized bool `json:"initialized"`
	Browsers    int  `json:"browsers"`
	Requested   int  `json:"requested"`
}

// NewPool creates an uninitialized pool
func NewPool(config common.BrowserConfig, logger arbor.ILogger) *Pool {
	if config.Instances <= 0 {
		config.Instances = 1
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = common.Duration(30 * time.Second)
	}
	return &Pool{
		config: config,
		logger: logger,
	}
}

// Start launches the configured number of browsers. It fails only when none of them start.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already started")
	}

	p.logger.Info().
		Int("instances", p.config.Instances).
		Bool("headless", p.config.Headless).
		Str("exec_path", p.config.ExecPath).
		Msg("Starting Chrome browser pool")

	var lastErr error
	for i := 0; i < p.config.Instances; i++ {
		if err := p.launch(i); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("browser_index", i).Msg("Failed to start browser instance")
		}
	}

	if len(p.browsers) == 0 {
		return fmt.Errorf("failed to start any browser instance: %w", lastErr)
	}
	if len(p.browsers) < p.config.Instances {
		p.logger.Warn().
			Int("requested", p.config.Instances).
			Int("started", len(p.browsers)).
			Msg("Started fewer browser instances than requested")
	}

	p.initialized = true
	p.logger.Info().Int("browsers", len(p.browsers)).Msg("Chrome browser pool ready")
	return nil
}

func (p *Pool) launch(index int) error {
	startTime := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("disable-gpu", p.config.DisableGPU),
		chromedp.Flag("no-sandbox", p.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.UserAgent(p.config.UserAgent),
	)
	if p.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.config.ExecPath))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, p.config.StartupTimeout.Std())
	defer testCancel()

	var title string
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank"), chromedp.Title(&title)); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)

	p.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance started")
	return nil
}

// browser returns the next browser context in round-robin order
func (p *Pool) browser() (context.Context, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized || len(p.browsers) == 0 {
		return nil, 0, fmt.Errorf("browser pool not started")
	}

	index := p.next % len(p.browsers)
	p.next = (p.next + 1) % len(p.browsers)
	return p.browsers[index], index, nil
}

// Shutdown cancels every browser and its allocator
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	p.logger.Info().Int("browsers", len(p.browsers)).Msg("Shutting down Chrome browser pool")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range p.browsers {
			p.browserCancels[i]()
			p.allocatorCancels[i]()
		}
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out")
	}

	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.initialized = false
	return nil
}

// Stats reports the pool size
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Initialized: p.initialized,
		Browsers:    len(p.browsers),
		Requested:   p.config.Instances,
	}
}
