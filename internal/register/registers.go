package register

import (
	"context"
	"fmt"
)

// Registers reads and writes typed seed blocks through a Gateway.
type Registers struct {
	gw     Gateway
	orders Orders
}

// NewRegisters binds a gateway to the byte and word order of the PLC.
func NewRegisters(gw Gateway, orders Orders) *Registers {
	return &Registers{gw: gw, orders: orders}
}

// ReadFlags reads the command bit-block for count slots.
func (r *Registers) ReadFlags(ctx context.Context, addr uint16, count int) (Block, error) {
	n := BitRegisters(count)
	regs, err := r.gw.ReadHoldingRegisters(ctx, addr, n)
	if err != nil {
		return nil, err
	}
	if len(regs) != n {
		return nil, &RegisterAccessError{Op: "read bits", Address: addr, Count: n,
			Err: fmt.Errorf("%w: got %d registers", ErrMalformed, len(regs))}
	}
	block, err := DecodeBits(regs, r.orders.Byte, r.orders.Word)
	if err != nil {
		return nil, err
	}
	return block[:count], nil
}

// WriteFlags writes the whole command bit-block.
func (r *Registers) WriteFlags(ctx context.Context, addr uint16, b Block) error {
	return r.gw.WriteHoldingRegisters(ctx, addr, EncodeBits(b, r.orders.Byte, r.orders.Word))
}

// ReadPose reads one seed pose block.
func (r *Registers) ReadPose(ctx context.Context, addr uint16) (SeedPose, error) {
	regs, err := r.gw.ReadHoldingRegisters(ctx, addr, PoseRegisters)
	if err != nil {
		return SeedPose{}, err
	}
	p, err := DecodePose(regs, r.orders.Byte, r.orders.Word)
	if err != nil {
		if rae, ok := err.(*RegisterAccessError); ok {
			rae.Address = addr
		}
		return SeedPose{}, err
	}
	return p, nil
}

// WritePose writes one seed pose block.
func (r *Registers) WritePose(ctx context.Context, addr uint16, p SeedPose) error {
	return r.gw.WriteHoldingRegisters(ctx, addr, EncodePose(p, r.orders.Byte, r.orders.Word))
}
