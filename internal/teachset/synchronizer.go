// Package teachset services the PLC's per-slot teach and set command bits.
package teachset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dyluth/locbridge/internal/locator"
	"github.com/dyluth/locbridge/internal/pose"
	"github.com/dyluth/locbridge/internal/register"
	"github.com/dyluth/locbridge/internal/resilient"
	"github.com/dyluth/locbridge/pkg/blackboard"
	"go.uber.org/zap"
)

// ErrNotLocalized is returned when a teach edge arrives without a localized pose.
var ErrNotLocalized = errors.New("pose not localized")

// Seeder hands a seed pose to the Locator.
type Seeder interface {
	SetSeed(ctx context.Context, seed locator.Seed) error
}

// EventSink receives audit records. Implementations must not block for long.
type EventSink interface {
	Record(ctx context.Context, e *blackboard.SeedEvent)
}

// Config configures a Synchronizer.
type Config struct {
	BitsAddress  uint16
	PosesAddress uint16
	SeedCount    int
	Interval     time.Duration
	Orders       register.Orders
	Policy       resilient.Policy
}

// Synchronizer polls the command bit-block and acts on rising edges.
type Synchronizer struct {
	cfg    Config
	cell   *pose.Cell
	dial   func(context.Context) (register.Gateway, error)
	seeder Seeder
	events EventSink
	log    *zap.SugaredLogger
	clock  clock.Clock

	// baseline is the previous snapshot; nil until the first read on a connection.
	baseline register.Block
	// rejected holds slots whose pending teach has already been refused.
	rejected map[int]bool
}

// New creates a Synchronizer. events may be nil.
func New(cfg Config, cell *pose.Cell, dial func(context.Context) (register.Gateway, error), seeder Seeder, events EventSink, log *zap.SugaredLogger) *Synchronizer {
	cfg.Policy.Logger = log
	clk := cfg.Policy.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Synchronizer{cfg: cfg, cell: cell, dial: dial, seeder: seeder, events: events, log: log, clock: clk, rejected: map[int]bool{}}
}

// Run services command bits until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.log.Infow("Teach/set synchronizer starting",
		"bits_addr", s.cfg.BitsAddress,
		"poses_addr", s.cfg.PosesAddress,
		"seeds", s.cfg.SeedCount)
	return resilient.Run(ctx, s.cfg.Policy, s.dial, s.loop)
}

func (s *Synchronizer) loop(ctx context.Context, gw register.Gateway) error {
	regs := register.NewRegisters(gw, s.cfg.Orders)
	s.baseline = nil
	s.rejected = map[int]bool{}

	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.cycle(ctx, regs); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle reads one snapshot and services at most one edge. A teach refused for
// lack of localization stays pending and does not hold back later edges. A
// returned error means the PLC link is unusable and must be reopened.
func (s *Synchronizer) cycle(ctx context.Context, regs *register.Registers) error {
	cur, err := regs.ReadFlags(ctx, s.cfg.BitsAddress, s.cfg.SeedCount)
	if err != nil {
		return fmt.Errorf("failed to read command bits: %w", err)
	}

	if s.baseline == nil {
		s.baseline = cur
		return nil
	}
	if cur.Equal(s.baseline) {
		return nil
	}

	edges := FindEdges(s.baseline, cur, s.cfg.SeedCount)
	s.forgetRejected(edges)

	for _, edge := range edges {
		switch edge.Kind {
		case Teach:
			err = s.teach(ctx, regs, cur, edge.Slot)
		case Set:
			err = s.set(ctx, regs, cur, edge.Slot)
		}

		switch {
		case errors.Is(err, ErrNotLocalized):
			s.rejected[edge.Slot] = true
			continue
		case err == nil:
			return s.rebase(ctx, regs, edge)
		case register.IsAccessError(err):
			return err
		default:
			// The Locator refused the seed. The bit stays set and is only retried
			// when the operator toggles it again.
			s.baseline = s.merge(cur, edge)
			return nil
		}
	}

	// Only refused teaches are left: take everything else from cur so falling
	// bits are not missed, but keep those teaches rising.
	next := cur.Clone()
	for slot := range s.rejected {
		next[slot].Teach = s.baseline[slot].Teach
	}
	s.baseline = next
	return nil
}

// forgetRejected drops slots whose teach is no longer pending.
func (s *Synchronizer) forgetRejected(edges []Edge) {
	for slot := range s.rejected {
		pending := false
		for _, e := range edges {
			if e.Slot == slot && e.Kind == Teach {
				pending = true
				break
			}
		}
		if !pending {
			delete(s.rejected, slot)
		}
	}
}

// rebase re-reads the bits after a write-back and takes only the serviced bit
// from the fresh read, so every other edge stays pending.
func (s *Synchronizer) rebase(ctx context.Context, regs *register.Registers, edge Edge) error {
	fresh, err := regs.ReadFlags(ctx, s.cfg.BitsAddress, s.cfg.SeedCount)
	if err != nil {
		return fmt.Errorf("failed to re-read command bits: %w", err)
	}
	s.baseline = s.merge(fresh, edge)
	return nil
}

func (s *Synchronizer) merge(src register.Block, edge Edge) register.Block {
	next := s.baseline.Clone()
	switch edge.Kind {
	case Teach:
		next[edge.Slot].Teach = src[edge.Slot].Teach
	case Set:
		next[edge.Slot].Set = src[edge.Slot].Set
	}
	return next
}

func (s *Synchronizer) teach(ctx context.Context, regs *register.Registers, cur register.Block, slot int) error {
	addr := register.PoseAddress(s.cfg.PosesAddress, slot)

	p, ok := s.cell.Load()
	if !ok || !p.Localized() {
		if s.rejected[slot] {
			s.log.Debugw("Teach still pending: robot not localized", "slot", slot, "localization_state", p.State)
			return ErrNotLocalized
		}
		s.log.Errorw("Teach rejected: robot not localized",
			"slot", slot, "addr", addr, "localization_state", p.State, "pose_received", ok)
		e := blackboard.NewSeedEvent(blackboard.EventTeachRejected, slot)
		e.X, e.Y, e.Yaw, e.LocalizationState = p.X, p.Y, p.Yaw, p.State
		e.Error = ErrNotLocalized.Error()
		s.record(ctx, e)
		return ErrNotLocalized
	}

	seed := p.Seed()
	if err := regs.WritePose(ctx, addr, seed); err != nil {
		s.log.Warnw("Teach failed: pose write", "slot", slot, "addr", addr, "x", seed.X, "y", seed.Y, "yaw", seed.Yaw, "err", err, "cause", register.Cause(err))
		return err
	}

	next := cur.Clone()
	next[slot].Teach = false
	if err := regs.WriteFlags(ctx, s.cfg.BitsAddress, next); err != nil {
		s.log.Warnw("Teach failed: clearing teach bit", "slot", slot, "err", err, "cause", register.Cause(err))
		return err
	}

	s.log.Infow("Seed taught", "slot", slot, "x", seed.X, "y", seed.Y, "yaw", seed.Yaw, "localization_state", p.State)
	e := blackboard.NewSeedEvent(blackboard.EventTaught, slot)
	e.X, e.Y, e.Yaw, e.LocalizationState = seed.X, seed.Y, seed.Yaw, p.State
	s.record(ctx, e)
	return nil
}

func (s *Synchronizer) set(ctx context.Context, regs *register.Registers, cur register.Block, slot int) error {
	addr := register.PoseAddress(s.cfg.PosesAddress, slot)
	flags := cur[slot]

	sp, err := regs.ReadPose(ctx, addr)
	if err != nil {
		s.log.Warnw("Set failed: pose read", "slot", slot, "addr", addr, "err", err, "cause", register.Cause(err))
		return err
	}

	seed := locator.Seed{X: sp.X, Y: sp.Y, Yaw: sp.Yaw, Enforce: flags.Enforce, Uncertain: flags.Uncertain}
	if err := s.seeder.SetSeed(ctx, seed); err != nil {
		s.log.Errorw("Set failed: Locator rejected seed",
			"slot", slot, "x", seed.X, "y", seed.Y, "yaw", seed.Yaw,
			"enforce", seed.Enforce, "uncertain", seed.Uncertain, "err", err)
		e := s.setEvent(blackboard.EventSetFailed, slot, seed)
		e.Error = err.Error()
		s.record(ctx, e)
		return fmt.Errorf("set seed for slot %d: %w", slot, err)
	}

	next := cur.Clone()
	next[slot].Set = false
	if err := regs.WriteFlags(ctx, s.cfg.BitsAddress, next); err != nil {
		s.log.Warnw("Set applied but clearing set bit failed", "slot", slot, "err", err, "cause", register.Cause(err))
		return err
	}

	s.log.Infow("Seed set", "slot", slot, "x", seed.X, "y", seed.Y, "yaw", seed.Yaw,
		"enforce", seed.Enforce, "uncertain", seed.Uncertain)
	s.record(ctx, s.setEvent(blackboard.EventSeedSet, slot, seed))
	return nil
}

func (s *Synchronizer) setEvent(t blackboard.EventType, slot int, seed locator.Seed) *blackboard.SeedEvent {
	e := blackboard.NewSeedEvent(t, slot)
	e.X, e.Y, e.Yaw = seed.X, seed.Y, seed.Yaw
	e.Enforce, e.Uncertain = seed.Enforce, seed.Uncertain
	return e
}

func (s *Synchronizer) record(ctx context.Context, e *blackboard.SeedEvent) {
	if s.events != nil {
		s.events.Record(ctx, e)
	}
}
