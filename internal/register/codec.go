package register

import (
	"fmt"
	"math"
)

const (
	// SlotsPerRegister is the number of 4-bit seed records packed into one register.
	SlotsPerRegister = 4
	// PoseRegisters is the size of one seed pose block: three float32 values.
	PoseRegisters = 6
)

// SeedFlags is the 4-bit command record of one seed slot.
type SeedFlags struct {
	Enforce   bool
	Uncertain bool
	Teach     bool
	Set       bool
}

// Block is the decoded seed command bit-block, one entry per slot.
type Block []SeedFlags

// Equal reports whether both blocks hold the same flags.
func (b Block) Equal(other Block) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the block.
func (b Block) Clone() Block {
	if b == nil {
		return nil
	}
	out := make(Block, len(b))
	copy(out, b)
	return out
}

// SeedPose is a planar pose as stored in a PLC seed pose block.
type SeedPose struct {
	X   float64
	Y   float64
	Yaw float64
}

// BitRegisters returns how many registers hold n seed records.
func BitRegisters(n int) int {
	return (n + SlotsPerRegister - 1) / SlotsPerRegister
}

// PoseAddress returns the first register of the pose block for slot.
func PoseAddress(base uint16, slot int) uint16 {
	return base + uint16(slot*PoseRegisters)
}

// DecodeBits unpacks a command bit-block. Every register yields four records;
// register bits are consumed least significant first, four at a time, mapping
// to enforce, uncertain, teach and set.
func DecodeBits(regs []uint16, bo ByteOrder, _ WordOrder) (Block, error) {
	if len(regs) == 0 {
		return nil, &RegisterAccessError{Op: "decode bits", Err: ErrMalformed}
	}
	out := make(Block, 0, len(regs)*SlotsPerRegister)
	for _, raw := range regs {
		v := bo.apply(raw)
		for n := 0; n < SlotsPerRegister; n++ {
			nib := v >> (4 * n)
			out = append(out, SeedFlags{
				Enforce:   nib&0x1 != 0,
				Uncertain: nib&0x2 != 0,
				Teach:     nib&0x4 != 0,
				Set:       nib&0x8 != 0,
			})
		}
	}
	return out, nil
}

// EncodeBits packs a command bit-block. Missing trailing records are written as zero.
func EncodeBits(b Block, bo ByteOrder, _ WordOrder) []uint16 {
	regs := make([]uint16, BitRegisters(len(b)))
	for i, f := range b {
		var nib uint16
		if f.Enforce {
			nib |= 0x1
		}
		if f.Uncertain {
			nib |= 0x2
		}
		if f.Teach {
			nib |= 0x4
		}
		if f.Set {
			nib |= 0x8
		}
		regs[i/SlotsPerRegister] |= nib << (4 * (i % SlotsPerRegister))
	}
	for i := range regs {
		regs[i] = bo.apply(regs[i])
	}
	return regs
}

// DecodePose reads x, y and yaw from exactly six registers.
func DecodePose(regs []uint16, bo ByteOrder, wo WordOrder) (SeedPose, error) {
	if len(regs) != PoseRegisters {
		return SeedPose{}, &RegisterAccessError{
			Op:    "decode pose",
			Count: len(regs),
			Err:   fmt.Errorf("%w: want %d registers", ErrMalformed, PoseRegisters),
		}
	}
	return SeedPose{
		X:   decodeFloat32(regs[0:2], bo, wo),
		Y:   decodeFloat32(regs[2:4], bo, wo),
		Yaw: decodeFloat32(regs[4:6], bo, wo),
	}, nil
}

// EncodePose writes x, y and yaw as three float32 values.
func EncodePose(p SeedPose, bo ByteOrder, wo WordOrder) []uint16 {
	regs := make([]uint16, 0, PoseRegisters)
	regs = append(regs, encodeFloat32(p.X, bo, wo)...)
	regs = append(regs, encodeFloat32(p.Y, bo, wo)...)
	regs = append(regs, encodeFloat32(p.Yaw, bo, wo)...)
	return regs
}

func encodeFloat32(v float64, bo ByteOrder, wo WordOrder) []uint16 {
	u := math.Float32bits(float32(v))
	hi, lo := uint16(u>>16), uint16(u)
	if wo == WordOrderLittle {
		hi, lo = lo, hi
	}
	return []uint16{bo.apply(hi), bo.apply(lo)}
}

func decodeFloat32(regs []uint16, bo ByteOrder, wo WordOrder) float64 {
	first, second := bo.apply(regs[0]), bo.apply(regs[1])
	if wo == WordOrderLittle {
		first, second = second, first
	}
	return float64(math.Float32frombits(uint32(first)<<16 | uint32(second)))
}
