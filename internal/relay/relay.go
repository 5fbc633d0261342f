// Package relay forwards the pose stream to one downstream consumer at a reduced rate.
package relay

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dyluth/locbridge/internal/pose"
	"github.com/dyluth/locbridge/internal/resilient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures a Relay.
type Config struct {
	Source      string
	Listen      string
	Frequency   float64 // datagrams per second
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Policy      resilient.Policy
}

// Relay reads whole datagrams from the pose stream and hands the newest one
// to the connected consumer at most Frequency times per second. Stale
// datagrams are dropped; only one consumer is served at a time.
type Relay struct {
	cfg      Config
	interval time.Duration
	queue    chan []byte
	log      *zap.SugaredLogger
	clock    clock.Clock
	ready    chan net.Addr
}

// New creates a Relay.
func New(cfg Config, log *zap.SugaredLogger) *Relay {
	cfg.Policy.Logger = log
	clk := cfg.Policy.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Relay{
		cfg:      cfg,
		interval: time.Duration(float64(time.Second) / cfg.Frequency),
		queue:    make(chan []byte, 1),
		log:      log,
		clock:    clk,
		ready:    make(chan net.Addr, 1),
	}
}

// Ready delivers the listen address once the relay accepts consumers.
func (r *Relay) Ready() <-chan net.Addr {
	return r.ready
}

// Run relays until ctx is cancelled or the listen address cannot be bound.
func (r *Relay) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.cfg.Listen, err)
	}
	r.log.Infow("Relay listening", "listen", ln.Addr().String(), "source", r.cfg.Source, "frequency", r.cfg.Frequency)
	r.ready <- ln.Addr()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return resilient.Run(gctx, r.cfg.Policy, r.dial, r.receive)
	})
	g.Go(func() error {
		return r.serve(gctx, ln)
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

func (r *Relay) dial(ctx context.Context) (net.Conn, error) {
	return pose.Dial(ctx, r.cfg.Source, r.cfg.DialTimeout)
}

func (r *Relay) receive(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	r.log.Infow("Relay connected to pose stream", "source", r.cfg.Source)
	var last time.Time
	for {
		buf := make([]byte, pose.DatagramSize)
		if _, err := pose.ReadDatagram(conn, buf, r.cfg.ReadTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		now := r.clock.Now()
		if !last.IsZero() && now.Sub(last) < r.interval {
			continue
		}
		last = now
		r.offer(buf)
	}
}

// offer puts data in the one-slot queue, replacing any datagram not yet sent.
func (r *Relay) offer(data []byte) {
	for {
		select {
		case r.queue <- data:
			return
		default:
		}
		select {
		case <-r.queue:
			r.log.Debugw("Dropped stale datagram")
		default:
		}
	}
}

func (r *Relay) serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warnw("Accept failed", "err", err, "retry_in", r.cfg.Policy.RetryBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.cfg.Policy.RetryBackoff):
			}
			continue
		}
		r.log.Infow("Consumer connected", "remote", conn.RemoteAddr().String())
		err = r.forward(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warnw("Consumer disconnected", "remote", conn.RemoteAddr().String(), "err", err)
	}
}

func (r *Relay) forward(ctx context.Context, conn net.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-r.queue:
			if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.DialTimeout)); err != nil {
				return err
			}
			if _, err := conn.Write(data); err != nil {
				return fmt.Errorf("failed to forward datagram: %w", err)
			}
		}
	}
}
