package render

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/scripts"
)

type eventKind int

const (
	evLoadFinished eventKind = iota
	evLoadError
	evTimeout
	evDelayElapsed
	evSanitized
	evSettled
	evPollTick
	evPollResult
	evExtracted
)

func (k eventKind) String() string {
	switch k {
	case evLoadFinished:
		return "load_finished"
	case evLoadError:
		return "load_error"
	case evTimeout:
		return "timeout"
	case evDelayElapsed:
		return "delay_elapsed"
	case evSanitized:
		return "sanitized"
	case evSettled:
		return "settled"
	case evPollTick:
		return "poll_tick"
	case evPollResult:
		return "poll_result"
	case evExtracted:
		return "extracted"
	default:
		return "unknown"
	}
}

type event struct {
	kind        eventKind
	url         string
	code        int
	description string
	result      string
	err         error
}

// session is one render from navigation to teardown. Surface callbacks and
// timers only post events; run consumes them on a single goroutine, so the
// handlers below never execute concurrently.
type session struct {
	id       string
	req      models.RenderRequest
	surface  interfaces.BrowserSurface
	poller   *Poller
	settle   time.Duration
	cookies  CookieStore
	logger   arbor.ILogger
	latch    *Latch
	events   chan event
	started  time.Time
	deadline time.Time // zero arms the timer with the full request timeout
	timeout  *time.Timer
	pending  *time.Timer
	pipeline bool // load-finished already handled
	attempts int
	report   models.ReadinessReport
	ready    bool
}

func newSession(req models.RenderRequest, surface interfaces.BrowserSurface, poller *Poller, settle time.Duration, cookies CookieStore, logger arbor.ILogger) *session {
	return &session{
		id:      uuid.New().String(),
		req:     req,
		surface: surface,
		poller:  poller,
		settle:  settle,
		cookies: cookies,
		logger:  logger,
		latch:   NewLatch(),
		events:  make(chan event, 8),
	}
}

// OnLoadFinished implements interfaces.SurfaceListener
func (s *session) OnLoadFinished(url string) {
	s.post(event{kind: evLoadFinished, url: url})
}

// OnLoadError implements interfaces.SurfaceListener
func (s *session) OnLoadError(code int, description string, failingURL string) {
	s.post(event{kind: evLoadError, code: code, description: description, url: failingURL})
}

// post hands an event to the loop, or drops it once the session completed
func (s *session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.latch.Done():
	}
}

// after posts kind once d elapsed. The session keeps at most one such timer.
func (s *session) after(d time.Duration, kind eventKind) {
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(d, func() { s.post(event{kind: kind}) })
}

func (s *session) run(ctx context.Context) (*models.RenderResult, error) {
	s.started = time.Now()
	s.logger.Debug().
		Str("session_id", s.id).
		Str("url", s.req.TargetURL).
		Str("mode", string(s.req.Mode())).
		Int("timeout_ms", s.req.TimeoutMillis).
		Msg("Render session started")

	s.surface.SetListener(s)
	budget := s.req.Timeout()
	if !s.deadline.IsZero() {
		budget = time.Until(s.deadline)
	}
	s.timeout = time.AfterFunc(budget, func() { s.post(event{kind: evTimeout}) })

	if err := s.surface.Load(s.req.TargetURL); err != nil {
		s.finish(Outcome{Err: newLoadError(s.req.TargetURL, "navigation could not start", err)})
	}

	for {
		select {
		case <-s.latch.Done():
			outcome := s.latch.Outcome()
			return outcome.Result, outcome.Err
		case <-ctx.Done():
			s.finish(Outcome{Err: contextError(s.req.TargetURL, ctx.Err())})
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *session) handle(ev event) {
	if s.latch.Completed() {
		return
	}
	s.logger.Trace().Str("session_id", s.id).Str("event", ev.kind.String()).Msg("Session event")

	switch ev.kind {
	case evLoadFinished:
		s.onLoadFinished(ev.url)
	case evLoadError:
		s.logger.Warn().
			Str("session_id", s.id).
			Int("code", ev.code).
			Str("description", ev.description).
			Str("failing_url", ev.url).
			Msg("Navigation failed")
		s.finish(Outcome{Err: newLoadError(s.req.TargetURL, ev.description, nil)})
	case evTimeout:
		s.finish(Outcome{Err: newTimeoutError(s.req.TargetURL, s.req.Timeout())})
	case evDelayElapsed:
		s.runSanitizer()
	case evSanitized:
		s.onSanitized(ev)
	case evSettled:
		s.extract()
	case evPollTick:
		s.poll()
	case evPollResult:
		s.onPollResult(ev)
	case evExtracted:
		s.onExtracted(ev)
	}
}

func (s *session) onLoadFinished(url string) {
	if s.pipeline {
		s.logger.Trace().Str("session_id", s.id).Str("url", url).Msg("Ignoring repeated load-finished event")
		return
	}
	s.pipeline = true

	s.logger.Debug().
		Str("session_id", s.id).
		Str("url", url).
		Dur("elapsed", time.Since(s.started)).
		Msg("Page load finished")

	if s.req.Mode() == models.RenderModeFixedDelay {
		s.after(s.req.PostLoadDelay(), evDelayElapsed)
		return
	}
	s.runSanitizer()
}

func (s *session) runSanitizer() {
	sanitize(s.surface, func(err error) {
		s.post(event{kind: evSanitized, err: err})
	})
}

func (s *session) onSanitized(ev event) {
	if ev.err != nil {
		s.logger.Debug().Str("session_id", s.id).Err(ev.err).Msg("Sanitizer failed, continuing")
	}

	if s.req.Mode() == models.RenderModeFixedDelay {
		s.after(s.settle, evSettled)
		return
	}
	s.poll()
}

func (s *session) poll() {
	s.attempts++
	s.surface.EvaluateScript(s.poller.Script(), func(result string, err error) {
		s.post(event{kind: evPollResult, result: result, err: err})
	})
}

func (s *session) onPollResult(ev event) {
	if ev.err != nil {
		s.logger.Debug().Str("session_id", s.id).Int("attempt", s.attempts).Err(ev.err).Msg("Readiness check failed")
	}

	s.report = s.poller.Interpret(ev.result, ev.err)
	s.logger.Trace().
		Str("session_id", s.id).
		Int("attempt", s.attempts).
		Int("paragraphs", s.report.ParagraphCount).
		Int("text_length", s.report.TotalTextLength).
		Bool("ready", s.report.HasContent).
		Msg("Readiness poll")

	if s.report.HasContent {
		s.ready = true
		s.extract()
		return
	}
	if s.poller.Exhausted(s.attempts) {
		s.logger.Debug().
			Str("session_id", s.id).
			Int("attempts", s.attempts).
			Msg("Content not ready after last poll, extracting anyway")
		s.extract()
		return
	}
	s.after(s.poller.Interval(), evPollTick)
}

func (s *session) extract() {
	s.surface.EvaluateScript(scripts.OuterHTML(), func(result string, err error) {
		s.post(event{kind: evExtracted, result: result, err: err})
	})
}

func (s *session) onExtracted(ev event) {
	if ev.err != nil {
		s.finish(Outcome{Err: newLoadError(s.req.TargetURL, "html extraction failed", ev.err)})
		return
	}

	s.finish(Outcome{Result: &models.RenderResult{
		URL:          s.req.TargetURL,
		HTML:         DecodeScriptResult(ev.result),
		Ready:        s.ready,
		PollAttempts: s.attempts,
		LastReport:   s.report,
		Mode:         s.req.Mode(),
		SessionID:    s.id,
		Duration:     time.Since(s.started),
	}})
}

// finish completes the session if nothing else did first, then tears it down
func (s *session) finish(outcome Outcome) {
	if !s.latch.TryComplete(outcome) {
		return
	}

	s.timeout.Stop()
	if s.pending != nil {
		s.pending.Stop()
	}

	if outcome.Err == nil && s.cookies != nil {
		if err := s.cookies.Flush(context.Background()); err != nil {
			s.logger.Warn().Str("session_id", s.id).Err(err).Msg("Failed to flush cookies after render")
		}
	}

	s.surface.Destroy()

	if outcome.Err != nil {
		s.logger.Warn().
			Str("session_id", s.id).
			Str("url", s.req.TargetURL).
			Str("kind", string(KindOf(outcome.Err))).
			Dur("elapsed", time.Since(s.started)).
			Err(outcome.Err).
			Msg("Render session failed")
		return
	}

	s.logger.Info().
		Str("session_id", s.id).
		Str("url", s.req.TargetURL).
		Int("html_length", len(outcome.Result.HTML)).
		Bool("ready", outcome.Result.Ready).
		Int("poll_attempts", outcome.Result.PollAttempts).
		Dur("elapsed", outcome.Result.Duration).
		Msg("Render session completed")
}
