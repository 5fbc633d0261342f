// Package testutil provides in-process stand-ins for the PLC and the Locator.
package testutil

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/dyluth/locbridge/internal/register"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
)

// PLC is an in-process Modbus/TCP server with a client for test assertions.
// Register access from tests goes through the client so the server's own
// request loop stays the single writer.
type PLC struct {
	T      *testing.T
	Server *mbserver.Server
	Host   string
	Port   int

	gw *register.ModbusGateway
}

// StartPLC starts a Modbus/TCP server on a free loopback port.
func StartPLC(t *testing.T) *PLC {
	t.Helper()

	host, port := FreeAddr(t)
	serv := mbserver.NewServer()
	require.NoError(t, serv.ListenTCP(net.JoinHostPort(host, strconv.Itoa(port))), "Failed to start Modbus server")

	plc := &PLC{T: t, Server: serv, Host: host, Port: port}

	gw, err := register.DialModbus(context.Background(), plc.Config())
	require.NoError(t, err, "Failed to connect test client to Modbus server")
	plc.gw = gw

	t.Cleanup(func() {
		gw.Close()
		serv.Close()
	})
	return plc
}

// Config returns a gateway config pointing at the server.
func (p *PLC) Config() register.ModbusConfig {
	return register.ModbusConfig{Host: p.Host, Port: p.Port, UnitID: 1, Timeout: 2 * time.Second}
}

// Read returns count holding registers starting at addr.
func (p *PLC) Read(addr uint16, count int) []uint16 {
	p.T.Helper()
	regs, err := p.gw.ReadHoldingRegisters(context.Background(), addr, count)
	require.NoError(p.T, err)
	return regs
}

// Write stores values starting at addr.
func (p *PLC) Write(addr uint16, values ...uint16) {
	p.T.Helper()
	require.NoError(p.T, p.gw.WriteHoldingRegisters(context.Background(), addr, values))
}

// Registers returns typed access to the server using the given orders.
func (p *PLC) Registers(orders register.Orders) *register.Registers {
	return register.NewRegisters(p.gw, orders)
}

// FreeAddr returns a loopback host and a port that was free when checked.
func FreeAddr(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}
