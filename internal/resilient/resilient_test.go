package resilient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeConn struct {
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func TestRun_RetriesConnectWithBackoff(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	var bodyRuns atomic.Int32
	link := NewLink("plc")

	policy := Policy{ConnectBackoff: 3 * time.Second, RetryBackoff: 3 * time.Second, Clock: mock, Link: link}
	connect := func(context.Context) (*fakeConn, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return &fakeConn{}, nil
	}
	body := func(ctx context.Context, c *fakeConn) error {
		bodyRuns.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, policy, connect, body) }()

	require.Eventually(t, func() bool {
		mock.Add(3 * time.Second)
		return bodyRuns.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), attempts.Load())
	assert.True(t, link.State().Connected)
	assert.Equal(t, "connection refused", link.State().LastError)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, link.State().Connected)
}

func TestRun_ReconnectsAfterBodyFailure(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, logs := observer.New(zapcore.WarnLevel)
	var conns []*fakeConn
	connCh := make(chan *fakeConn, 4)

	policy := Policy{ConnectBackoff: time.Second, RetryBackoff: 3 * time.Second, Clock: mock, Logger: zap.New(core).Sugar()}
	connect := func(context.Context) (*fakeConn, error) {
		c := &fakeConn{}
		connCh <- c
		return c, nil
	}
	var runs atomic.Int32
	body := func(ctx context.Context, c *fakeConn) error {
		if runs.Add(1) == 1 {
			return errors.New("i/o timeout")
		}
		<-ctx.Done()
		return ctx.Err()
	}

	go Run(ctx, policy, connect, body)

	conns = append(conns, <-connCh)

	// The second connect waits for the retry backoff.
	require.Eventually(t, func() bool {
		mock.Add(500 * time.Millisecond)
		return runs.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
	conns = append(conns, <-connCh)

	assert.True(t, conns[0].closed.Load(), "failed connection must be closed")
	assert.False(t, conns[1].closed.Load())
	assert.Equal(t, 1, logs.FilterMessage("connection lost, reconnecting").Len())
}

func TestRun_CancelDuringConnectBackoff(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{ConnectBackoff: time.Hour, RetryBackoff: time.Hour, Clock: mock}
	var attempts atomic.Int32
	connect := func(context.Context) (*fakeConn, error) {
		attempts.Add(1)
		return nil, errors.New("unreachable")
	}
	body := func(context.Context, *fakeConn) error { return nil }

	done := make(chan error, 1)
	go func() { done <- Run(ctx, policy, connect, body) }()

	require.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
