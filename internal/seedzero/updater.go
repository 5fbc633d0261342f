// Package seedzero mirrors the live pose into the PLC's current pose block.
package seedzero

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dyluth/locbridge/internal/pose"
	"github.com/dyluth/locbridge/internal/register"
	"github.com/dyluth/locbridge/internal/resilient"
	"github.com/dyluth/locbridge/pkg/blackboard"
	"go.uber.org/zap"
)

// Thresholds is the minimum motion that triggers a new write.
type Thresholds struct {
	Translation float64 // metres, per axis
	Rotation    float64 // radians
}

// Moved reports whether next differs from last by more than t on any axis.
func Moved(last, next register.SeedPose, t Thresholds) bool {
	return math.Abs(next.X-last.X) > t.Translation ||
		math.Abs(next.Y-last.Y) > t.Translation ||
		math.Abs(next.Yaw-last.Yaw) > t.Rotation
}

// EventSink receives audit records. Implementations must not block for long.
type EventSink interface {
	Record(ctx context.Context, e *blackboard.SeedEvent)
	StoreCurrentPose(ctx context.Context, p *blackboard.CurrentPose)
}

// Config configures an Updater.
type Config struct {
	Address    uint16
	Interval   time.Duration
	Thresholds Thresholds
	Orders     register.Orders
	Policy     resilient.Policy
}

// Updater writes the live pose to the PLC whenever the robot has moved.
type Updater struct {
	cfg    Config
	cell   *pose.Cell
	dial   func(context.Context) (register.Gateway, error)
	events EventSink
	log    *zap.SugaredLogger
	clock  clock.Clock

	// last is kept across reconnects so a reconnect does not force a rewrite.
	last *register.SeedPose
}

// New creates an Updater. events may be nil.
func New(cfg Config, cell *pose.Cell, dial func(context.Context) (register.Gateway, error), events EventSink, log *zap.SugaredLogger) *Updater {
	cfg.Policy.Logger = log
	clk := cfg.Policy.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Updater{cfg: cfg, cell: cell, dial: dial, events: events, log: log, clock: clk}
}

// Run polls the pose cell until ctx is cancelled.
func (u *Updater) Run(ctx context.Context) error {
	u.log.Infow("Seed zero updater starting", "addr", u.cfg.Address, "interval", u.cfg.Interval)
	return resilient.Run(ctx, u.cfg.Policy, u.dial, u.loop)
}

func (u *Updater) loop(ctx context.Context, gw register.Gateway) error {
	regs := register.NewRegisters(gw, u.cfg.Orders)
	ticker := u.clock.Ticker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := u.update(ctx, regs); err != nil {
			return err
		}
	}
}

// update writes the current pose if it is localized and has moved.
// It reports whether a write happened.
func (u *Updater) update(ctx context.Context, regs *register.Registers) (bool, error) {
	p, ok := u.cell.Load()
	if !ok || !p.Localized() {
		return false, nil
	}
	next := p.Seed()
	if u.last != nil && !Moved(*u.last, next, u.cfg.Thresholds) {
		return false, nil
	}

	if err := regs.WritePose(ctx, u.cfg.Address, next); err != nil {
		u.log.Warnw("Failed to write current pose", "addr", u.cfg.Address, "x", next.X, "y", next.Y, "yaw", next.Yaw, "err", err, "cause", register.Cause(err))
		return false, err
	}
	u.last = &next
	u.log.Debugw("Current pose written", "addr", u.cfg.Address, "x", next.X, "y", next.Y, "yaw", next.Yaw)

	if u.events != nil {
		e := blackboard.NewSeedEvent(blackboard.EventSeedZero, blackboard.CurrentPoseSlot)
		e.X, e.Y, e.Yaw, e.LocalizationState = next.X, next.Y, next.Yaw, p.State
		u.events.Record(ctx, e)
		u.events.StoreCurrentPose(ctx, &blackboard.CurrentPose{
			X:                 next.X,
			Y:                 next.Y,
			Yaw:               next.Yaw,
			LocalizationState: p.State,
			UpdatedAtMs:       e.TimestampMs,
		})
	}
	return true, nil
}
