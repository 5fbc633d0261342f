// Package resilient runs a connection-bound loop that reconnects after failures.
package resilient

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy controls how Run connects and recovers.
type Policy struct {
	// ConnectBackoff is the wait between failed connect attempts.
	ConnectBackoff time.Duration
	// RetryBackoff is the wait after the body fails before reconnecting.
	RetryBackoff time.Duration
	Clock        clock.Clock
	Logger       *zap.SugaredLogger
	// Link, if set, tracks connection state for health reporting.
	Link *Link
}

// Run connects, hands the connection to body, and starts over whenever either
// fails. The connection is closed after every body run. Run returns ctx.Err()
// once ctx is cancelled and never returns otherwise.
func Run[C io.Closer](ctx context.Context, p Policy, connect func(context.Context) (C, error), body func(context.Context, C) error) error {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	for {
		conn, err := connectWithRetry(ctx, p, clk, log, connect)
		if err != nil {
			return ctx.Err()
		}
		p.Link.up()

		err = body(ctx, conn)
		if cerr := conn.Close(); cerr != nil {
			log.Debugw("close failed", "err", cerr)
		}
		p.Link.down(err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnw("connection lost, reconnecting", "err", err, "retry_in", p.RetryBackoff)

		if !sleep(ctx, clk, p.RetryBackoff) {
			return ctx.Err()
		}
	}
}

func connectWithRetry[C io.Closer](ctx context.Context, p Policy, clk clock.Clock, log *zap.SugaredLogger, connect func(context.Context) (C, error)) (C, error) {
	b := backoff.WithContext(backoff.NewConstantBackOff(p.ConnectBackoff), ctx)
	notify := func(err error, next time.Duration) {
		p.Link.down(err)
		log.Warnw("connect failed", "err", err, "retry_in", next)
	}
	return backoff.RetryNotifyWithTimerAndData(func() (C, error) {
		return connect(ctx)
	}, b, notify, &clockTimer{clock: clk})
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// clockTimer adapts a clock.Clock to backoff.Timer.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}

// Link is the observable state of one resilient connection.
type Link struct {
	Name string

	mu        sync.RWMutex
	connected bool
	since     time.Time
	lastErr   string
}

// LinkState is a point-in-time copy of a Link.
type LinkState struct {
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
	Since     time.Time `json:"since,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// NewLink returns a disconnected link.
func NewLink(name string) *Link {
	return &Link{Name: name}
}

// State returns a snapshot of the link.
func (l *Link) State() LinkState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LinkState{Name: l.Name, Connected: l.connected, Since: l.since, LastError: l.lastErr}
}

func (l *Link) up() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	l.since = time.Now()
}

func (l *Link) down(err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		l.since = time.Now()
	}
	l.connected = false
	if err != nil && !errors.Is(err, context.Canceled) {
		l.lastErr = err.Error()
	}
}
