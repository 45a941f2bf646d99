package render

import (
	"time"

	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/ternarybob/pagerender/internal/readiness"
	"github.com/ternarybob/pagerender/internal/scripts"
	"github.com/tidwall/gjson"
)

// Poller owns the readiness predicate and the retry budget. The session
// drives it: one script evaluation per attempt, Interpret on each result.
type Poller struct {
	criteria    readiness.Criteria
	maxAttempts int
	interval    time.Duration
	script      string
}

// NewPoller creates a poller. maxAttempts is clamped to [1, common.MaxPollAttempts].
func NewPoller(criteria readiness.Criteria, maxAttempts int, interval time.Duration) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts > common.MaxPollAttempts {
		maxAttempts = common.MaxPollAttempts
	}
	return &Poller{
		criteria:    criteria,
		maxAttempts: maxAttempts,
		interval:    interval,
		script:      scripts.Readiness(criteria.MinParagraphLength),
	}
}

// Script is evaluated once per attempt. It never mutates the document.
func (p *Poller) Script() string {
	return p.script
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Exhausted reports whether attempts has used up the budget
func (p *Poller) Exhausted(attempts int) bool {
	return attempts >= p.maxAttempts
}

// Interpret converts a raw script result into a report. A failed
// evaluation or an unreadable payload counts as not ready.
func (p *Poller) Interpret(raw string, err error) models.ReadinessReport {
	if err != nil {
		return models.ReadinessReport{}
	}

	payload := DecodeScriptResult(raw)
	if !gjson.Valid(payload) {
		return models.ReadinessReport{}
	}

	parsed := gjson.Parse(payload)
	if parsed.Get("error").Exists() {
		return models.ReadinessReport{}
	}
	return p.criteria.Evaluate(
		int(parsed.Get("paragraphCount").Int()),
		int(parsed.Get("totalTextLength").Int()),
	)
}
