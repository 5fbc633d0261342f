package pose

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dyluth/locbridge/internal/resilient"
	"go.uber.org/zap"
)

// Ingester keeps a connection to the pose stream and stores every decoded pose in a Cell.
// It is the only writer of its cell.
type Ingester struct {
	addr        string
	cell        *Cell
	dialTimeout time.Duration
	readTimeout time.Duration
	policy      resilient.Policy
	log         *zap.SugaredLogger
}

// IngesterConfig configures an Ingester.
type IngesterConfig struct {
	Addr        string
	DialTimeout time.Duration
	// ReadTimeout bounds the wait for each datagram; a silent stream is treated as lost.
	ReadTimeout time.Duration
	Policy      resilient.Policy
}

// NewIngester creates an ingester that writes into cell.
func NewIngester(cfg IngesterConfig, cell *Cell, log *zap.SugaredLogger) *Ingester {
	policy := cfg.Policy
	policy.Logger = log
	return &Ingester{
		addr:        cfg.Addr,
		cell:        cell,
		dialTimeout: cfg.DialTimeout,
		readTimeout: cfg.ReadTimeout,
		policy:      policy,
		log:         log,
	}
}

// Run streams poses until ctx is cancelled.
func (in *Ingester) Run(ctx context.Context) error {
	in.log.Infow("Pose ingest starting", "addr", in.addr)
	return resilient.Run(ctx, in.policy, in.dial, in.stream)
}

func (in *Ingester) dial(ctx context.Context) (net.Conn, error) {
	return Dial(ctx, in.addr, in.dialTimeout)
}

func (in *Ingester) stream(ctx context.Context, conn net.Conn) error {
	in.log.Infow("Connected to pose stream", "addr", in.addr)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, DatagramSize)
	for {
		d, err := ReadDatagram(conn, buf, in.readTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		p := d.Pose()
		in.cell.Store(p)
		in.log.Debugw("pose", "x", p.X, "y", p.Y, "yaw", p.Yaw, "state", p.State, "unique_id", d.UniqueID)
	}
}

// Dial opens a TCP connection to the pose stream.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pose stream at %s: %w", addr, err)
	}
	return conn, nil
}

// ReadDatagram reads exactly one datagram into buf, accumulating short reads.
// A zero timeout waits indefinitely.
func ReadDatagram(conn net.Conn, buf []byte, timeout time.Duration) (Datagram, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Datagram{}, err
		}
	}
	if _, err := io.ReadFull(conn, buf[:DatagramSize]); err != nil {
		return Datagram{}, fmt.Errorf("failed to read pose datagram: %w", err)
	}
	return DecodeDatagram(buf[:DatagramSize])
}
