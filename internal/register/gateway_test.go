package register_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/locbridge/internal/register"
	"github.com/dyluth/locbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModbusGateway_ReadWrite(t *testing.T) {
	plc := testutil.StartPLC(t)
	ctx := context.Background()

	gw, err := register.DialModbus(ctx, plc.Config())
	require.NoError(t, err)
	defer gw.Close()

	require.NoError(t, gw.WriteHoldingRegisters(ctx, 100, []uint16{1, 2, 0xBEEF}))

	regs, err := gw.ReadHoldingRegisters(ctx, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 0xBEEF}, regs)
}

func TestModbusGateway_ExceptionIsAccessError(t *testing.T) {
	plc := testutil.StartPLC(t)
	ctx := context.Background()

	gw, err := register.DialModbus(ctx, plc.Config())
	require.NoError(t, err)
	defer gw.Close()

	// Reading past the end of the register table draws an illegal data address exception.
	_, err = gw.ReadHoldingRegisters(ctx, 65530, 10)
	require.Error(t, err)

	var rae *register.RegisterAccessError
	require.True(t, errors.As(err, &rae))
	assert.Equal(t, "read", rae.Op)
	assert.Equal(t, uint16(65530), rae.Address)
	assert.NotZero(t, rae.Exception())
	assert.False(t, rae.Timeout())
	assert.Equal(t, "exception 2", register.Cause(err))
}

func TestDialModbus_Unreachable(t *testing.T) {
	host, port := testutil.FreeAddr(t)

	_, err := register.DialModbus(context.Background(), register.ModbusConfig{
		Host:    host,
		Port:    port,
		UnitID:  1,
		Timeout: 500 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestRegisters_SeedBlocks(t *testing.T) {
	plc := testutil.StartPLC(t)
	ctx := context.Background()
	orders := register.Orders{Byte: register.ByteOrderBig, Word: register.WordOrderLittle}
	regs := plc.Registers(orders)

	t.Run("flags", func(t *testing.T) {
		block := make(register.Block, 16)
		block[3].Teach = true
		block[9].Set = true
		block[9].Enforce = true

		require.NoError(t, regs.WriteFlags(ctx, 16, block))

		got, err := regs.ReadFlags(ctx, 16, 16)
		require.NoError(t, err)
		assert.True(t, block.Equal(got))
	})

	t.Run("pose", func(t *testing.T) {
		addr := register.PoseAddress(32, 3)
		assert.Equal(t, uint16(50), addr)

		require.NoError(t, regs.WritePose(ctx, addr, register.SeedPose{X: 1, Y: 2, Yaw: 0.5}))

		got, err := regs.ReadPose(ctx, addr)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got.X, 1e-6)
		assert.InDelta(t, 2.0, got.Y, 1e-6)
		assert.InDelta(t, 0.5, got.Yaw, 1e-6)
	})

	t.Run("partial register count", func(t *testing.T) {
		got, err := regs.ReadFlags(ctx, 16, 6)
		require.NoError(t, err)
		assert.Len(t, got, 6)
	})
}
