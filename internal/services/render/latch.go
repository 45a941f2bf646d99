package render

import (
	"sync/atomic"

	"github.com/ternarybob/pagerender/internal/models"
)

// Outcome is the terminal value of a session: a result or an error, never both
type Outcome struct {
	Result *models.RenderResult
	Err    error
}

// Latch records the first outcome offered to it. Later offers are rejected.
type Latch struct {
	completed atomic.Bool
	done      chan struct{}
	outcome   Outcome
}

// NewLatch creates an open latch
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// TryComplete stores outcome if no outcome was stored yet and reports
// whether this call won. Only the winner may tear the session down.
func (l *Latch) TryComplete(outcome Outcome) bool {
	if !l.completed.CompareAndSwap(false, true) {
		return false
	}
	l.outcome = outcome
	close(l.done)
	return true
}

// Completed reports whether an outcome has been stored
func (l *Latch) Completed() bool {
	return l.completed.Load()
}

// Done is closed once an outcome has been stored
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Outcome returns the stored outcome. Only valid after Done is closed.
func (l *Latch) Outcome() Outcome {
	<-l.done
	return l.outcome
}
