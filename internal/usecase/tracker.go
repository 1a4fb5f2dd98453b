package usecase

import (
	"context"
	"sync"

	"growthdash/pkg/metrics"
)

// RequestTracker enforces latest-request-wins per view session. Beginning a
// request cancels the previous request of the same session, and only the most
// recent token reports itself current.
type RequestTracker struct {
	mu      sync.Mutex
	seq     uint64
	active  map[string]*Token
	metrics *metrics.Metrics
}

// Token identifies one in-flight request.
type Token struct {
	tracker *RequestTracker
	session string
	seq     uint64
	cancel  context.CancelFunc
}

func NewRequestTracker(metrics *metrics.Metrics) *RequestTracker {
	return &RequestTracker{
		active:  make(map[string]*Token),
		metrics: metrics,
	}
}

// Begin registers a new request for session and returns a context that is
// cancelled once a newer request for the same session begins. An empty
// session is never superseded.
func (t *RequestTracker) Begin(ctx context.Context, session string) (context.Context, *Token) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	token := &Token{tracker: t, session: session, seq: t.seq, cancel: cancel}
	if session == "" {
		return ctx, token
	}
	if prev, ok := t.active[session]; ok {
		prev.cancel()
	}
	t.active[session] = token
	return ctx, token
}

// Current reports whether no newer request has begun for the token's session.
func (tok *Token) Current() bool {
	if tok.session == "" {
		return true
	}
	tok.tracker.mu.Lock()
	defer tok.tracker.mu.Unlock()
	return tok.tracker.active[tok.session] == tok
}

// Stale reports whether the token was superseded and counts it if so.
func (tok *Token) Stale() bool {
	if tok.Current() {
		return false
	}
	tok.tracker.metrics.RecordStaleRequest()
	return true
}

// Done releases the token's context and forgets the session if the token is
// still its latest request.
func (tok *Token) Done() {
	tok.cancel()
	if tok.session == "" {
		return
	}
	tok.tracker.mu.Lock()
	defer tok.tracker.mu.Unlock()
	if tok.tracker.active[tok.session] == tok {
		delete(tok.tracker.active, tok.session)
	}
}
