package register

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
)

// Gateway reads and writes raw holding registers.
type Gateway interface {
	ReadHoldingRegisters(ctx context.Context, addr uint16, count int) ([]uint16, error)
	WriteHoldingRegisters(ctx context.Context, addr uint16, values []uint16) error
	Close() error
}

// ModbusConfig describes a Modbus/TCP connection.
type ModbusConfig struct {
	Host    string
	Port    int
	UnitID  byte
	Timeout time.Duration
}

// Address returns host:port for the PLC.
func (c ModbusConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ModbusGateway is a Gateway backed by a Modbus/TCP connection.
type ModbusGateway struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// DialModbus connects to the PLC. The context bounds the connect only.
func DialModbus(ctx context.Context, cfg ModbusConfig) (*ModbusGateway, error) {
	handler := modbus.NewTCPClientHandler(cfg.Address())
	handler.Timeout = cfg.Timeout
	handler.SlaveId = cfg.UnitID
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 && (cfg.Timeout == 0 || d < cfg.Timeout) {
			handler.Timeout = d
		}
	}

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to PLC at %s: %w", cfg.Address(), err)
	}
	// Keep the request timeout independent of the connect deadline.
	handler.Timeout = cfg.Timeout

	return &ModbusGateway{
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

// ReadHoldingRegisters reads count registers starting at addr.
func (g *ModbusGateway) ReadHoldingRegisters(ctx context.Context, addr uint16, count int) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := g.client.ReadHoldingRegisters(addr, uint16(count))
	if err != nil {
		return nil, &RegisterAccessError{Op: "read", Address: addr, Count: count, Err: err}
	}
	if len(raw) != count*2 {
		return nil, &RegisterAccessError{
			Op:      "read",
			Address: addr,
			Count:   count,
			Err:     fmt.Errorf("%w: got %d bytes", ErrMalformed, len(raw)),
		}
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return regs, nil
}

// WriteHoldingRegisters writes values starting at addr.
func (g *ModbusGateway) WriteHoldingRegisters(ctx context.Context, addr uint16, values []uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(values) == 0 {
		return &RegisterAccessError{Op: "write", Address: addr, Err: ErrMalformed}
	}
	raw := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(raw[i*2:], v)
	}
	if _, err := g.client.WriteMultipleRegisters(addr, uint16(len(values)), raw); err != nil {
		return &RegisterAccessError{Op: "write", Address: addr, Count: len(values), Err: err}
	}
	return nil
}

// Close closes the TCP connection.
func (g *ModbusGateway) Close() error {
	return g.handler.Close()
}
