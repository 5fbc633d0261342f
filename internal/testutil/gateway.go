package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/dyluth/locbridge/internal/register"
	"github.com/dyluth/locbridge/pkg/blackboard"
)

// ErrInjected is the transport error returned by a FakeGateway set to fail.
var ErrInjected = errors.New("i/o timeout")

// Write is one WriteHoldingRegisters call seen by a FakeGateway.
type Write struct {
	Addr   uint16
	Values []uint16
}

// FakeGateway is an in-memory register.Gateway that records writes.
type FakeGateway struct {
	mu        sync.Mutex
	regs      map[uint16]uint16
	writes    []Write
	reads     int
	failReads int
	failWrite int
	closed    bool
}

// NewFakeGateway returns an empty register map.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{regs: make(map[uint16]uint16)}
}

// Set stores values without recording a write.
func (g *FakeGateway) Set(addr uint16, values ...uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, v := range values {
		g.regs[addr+uint16(i)] = v
	}
}

// Get returns count registers starting at addr.
func (g *FakeGateway) Get(addr uint16, count int) []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uint16, count)
	for i := range out {
		out[i] = g.regs[addr+uint16(i)]
	}
	return out
}

// FailReads makes the next n reads fail.
func (g *FakeGateway) FailReads(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failReads = n
}

// FailWrites makes the next n writes fail.
func (g *FakeGateway) FailWrites(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWrite = n
}

// Writes returns all recorded writes.
func (g *FakeGateway) Writes() []Write {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Write, len(g.writes))
	copy(out, g.writes)
	return out
}

// WritesTo returns recorded writes starting at addr.
func (g *FakeGateway) WritesTo(addr uint16) []Write {
	var out []Write
	for _, w := range g.Writes() {
		if w.Addr == addr {
			out = append(out, w)
		}
	}
	return out
}

// Reads returns the number of read calls, failed ones included.
func (g *FakeGateway) Reads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads
}

// Closed reports whether Close was called.
func (g *FakeGateway) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *FakeGateway) ReadHoldingRegisters(ctx context.Context, addr uint16, count int) ([]uint16, error) {
	g.mu.Lock()
	g.reads++
	if g.failReads > 0 {
		g.failReads--
		g.mu.Unlock()
		return nil, &register.RegisterAccessError{Op: "read", Address: addr, Count: count, Err: ErrInjected}
	}
	g.mu.Unlock()
	return g.Get(addr, count), nil
}

func (g *FakeGateway) WriteHoldingRegisters(ctx context.Context, addr uint16, values []uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrite > 0 {
		g.failWrite--
		return &register.RegisterAccessError{Op: "write", Address: addr, Count: len(values), Err: ErrInjected}
	}
	cp := make([]uint16, len(values))
	copy(cp, values)
	g.writes = append(g.writes, Write{Addr: addr, Values: cp})
	for i, v := range values {
		g.regs[addr+uint16(i)] = v
	}
	return nil
}

func (g *FakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// EventRecorder collects audit records in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []*blackboard.SeedEvent
	poses  []*blackboard.CurrentPose
}

// Record stores an event.
func (r *EventRecorder) Record(ctx context.Context, e *blackboard.SeedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// StoreCurrentPose stores a current pose update.
func (r *EventRecorder) StoreCurrentPose(ctx context.Context, p *blackboard.CurrentPose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poses = append(r.poses, p)
}

// Events returns all recorded events.
func (r *EventRecorder) Events() []*blackboard.SeedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*blackboard.SeedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Poses returns all current pose updates.
func (r *EventRecorder) Poses() []*blackboard.CurrentPose {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*blackboard.CurrentPose, len(r.poses))
	copy(out, r.poses)
	return out
}
