// Package pose ingests the Locator's binary pose stream and holds the latest pose.
package pose

import (
	"sync/atomic"
	"time"

	"github.com/dyluth/locbridge/internal/register"
)

// MinLocalizedState is the lowest localization state that counts as localized.
const MinLocalizedState = 2

// Pose is the robot pose reported by the Locator.
type Pose struct {
	X         float64
	Y         float64
	Yaw       float64
	State     int32
	Timestamp time.Time
}

// Localized reports whether the pose may be used to teach or move seeds.
func (p Pose) Localized() bool {
	return p.State >= MinLocalizedState
}

// Seed returns the pose in PLC seed form.
func (p Pose) Seed() register.SeedPose {
	return register.SeedPose{X: p.X, Y: p.Y, Yaw: p.Yaw}
}

// Cell is a single-slot mailbox holding the latest pose.
// It has one writer and any number of readers.
type Cell struct {
	p atomic.Pointer[Pose]
}

// NewCell returns an empty cell.
func NewCell() *Cell {
	return &Cell{}
}

// Store replaces the held pose.
func (c *Cell) Store(p Pose) {
	c.p.Store(&p)
}

// Load returns the latest pose. ok is false until the first Store.
func (c *Cell) Load() (p Pose, ok bool) {
	ptr := c.p.Load()
	if ptr == nil {
		return Pose{}, false
	}
	return *ptr, true
}
