package register

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allOrders = []Orders{
	{ByteOrderBig, WordOrderBig},
	{ByteOrderBig, WordOrderLittle},
	{ByteOrderLittle, WordOrderBig},
	{ByteOrderLittle, WordOrderLittle},
}

func TestDecodeBits_Layout(t *testing.T) {
	// slot 0 enforce, slot 1 teach, slot 3 set
	regs := []uint16{0x0001 | 0x0040 | 0x8000}

	block, err := DecodeBits(regs, ByteOrderBig, WordOrderLittle)
	require.NoError(t, err)
	require.Len(t, block, 4)

	assert.Equal(t, SeedFlags{Enforce: true}, block[0])
	assert.Equal(t, SeedFlags{Teach: true}, block[1])
	assert.Equal(t, SeedFlags{}, block[2])
	assert.Equal(t, SeedFlags{Set: true}, block[3])
}

func TestDecodeBits_ByteOrderLittleSwapsBytes(t *testing.T) {
	big, err := DecodeBits([]uint16{0x0004}, ByteOrderBig, WordOrderBig)
	require.NoError(t, err)
	little, err := DecodeBits([]uint16{0x0400}, ByteOrderLittle, WordOrderBig)
	require.NoError(t, err)

	assert.Equal(t, big, little)
	assert.True(t, little[0].Teach)
}

func TestDecodeBits_EmptyIsMalformed(t *testing.T) {
	_, err := DecodeBits(nil, ByteOrderBig, WordOrderBig)
	require.Error(t, err)

	var rae *RegisterAccessError
	require.True(t, errors.As(err, &rae))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestBits_RoundTrip(t *testing.T) {
	block := make(Block, 16)
	for i := range block {
		block[i] = SeedFlags{
			Enforce:   i%2 == 0,
			Uncertain: i%3 == 0,
			Teach:     i%5 == 0,
			Set:       i%7 == 0,
		}
	}

	for _, o := range allOrders {
		t.Run(o.Byte.String()+"/"+o.Word.String(), func(t *testing.T) {
			regs := EncodeBits(block, o.Byte, o.Word)
			assert.Len(t, regs, 4)

			decoded, err := DecodeBits(regs, o.Byte, o.Word)
			require.NoError(t, err)
			assert.True(t, block.Equal(decoded))
		})
	}
}

func TestEncodeBits_PadsPartialRegister(t *testing.T) {
	block := Block{{Teach: true}, {}, {}, {}, {}, {Set: true}}

	regs := EncodeBits(block, ByteOrderBig, WordOrderBig)
	require.Len(t, regs, 2)
	assert.Equal(t, uint16(0x0004), regs[0])
	assert.Equal(t, uint16(0x0080), regs[1])

	decoded, err := DecodeBits(regs, ByteOrderBig, WordOrderBig)
	require.NoError(t, err)
	require.Len(t, decoded, 8)
	assert.True(t, block.Equal(decoded[:6]))
	assert.Equal(t, SeedFlags{}, decoded[7])
}

func TestBitRegisters(t *testing.T) {
	assert.Equal(t, 1, BitRegisters(1))
	assert.Equal(t, 1, BitRegisters(4))
	assert.Equal(t, 2, BitRegisters(5))
	assert.Equal(t, 4, BitRegisters(16))
}

func TestPose_RoundTrip(t *testing.T) {
	p := SeedPose{X: 12.345, Y: -6.789, Yaw: 3.14159}

	for _, o := range allOrders {
		t.Run(o.Byte.String()+"/"+o.Word.String(), func(t *testing.T) {
			regs := EncodePose(p, o.Byte, o.Word)
			require.Len(t, regs, PoseRegisters)

			decoded, err := DecodePose(regs, o.Byte, o.Word)
			require.NoError(t, err)
			assert.InDelta(t, p.X, decoded.X, 1e-5)
			assert.InDelta(t, p.Y, decoded.Y, 1e-5)
			assert.InDelta(t, p.Yaw, decoded.Yaw, 1e-6)
		})
	}
}

func TestEncodePose_WireLayout(t *testing.T) {
	// 1.0 is 0x3F800000
	regs := EncodePose(SeedPose{X: 1.0}, ByteOrderBig, WordOrderBig)
	assert.Equal(t, []uint16{0x3F80, 0x0000}, regs[0:2])

	regs = EncodePose(SeedPose{X: 1.0}, ByteOrderBig, WordOrderLittle)
	assert.Equal(t, []uint16{0x0000, 0x3F80}, regs[0:2])

	regs = EncodePose(SeedPose{X: 1.0}, ByteOrderLittle, WordOrderBig)
	assert.Equal(t, []uint16{0x803F, 0x0000}, regs[0:2])
}

func TestDecodePose_WrongLength(t *testing.T) {
	for _, n := range []int{0, 5, 7} {
		_, err := DecodePose(make([]uint16, n), ByteOrderBig, WordOrderBig)
		assert.ErrorIs(t, err, ErrMalformed)
	}
}

func TestParseOrders(t *testing.T) {
	bo, err := ParseByteOrder("little")
	require.NoError(t, err)
	assert.Equal(t, ByteOrderLittle, bo)

	bo, err = ParseByteOrder(">")
	require.NoError(t, err)
	assert.Equal(t, ByteOrderBig, bo)

	wo, err := ParseWordOrder("Little")
	require.NoError(t, err)
	assert.Equal(t, WordOrderLittle, wo)

	_, err = ParseByteOrder("middle")
	assert.Error(t, err)
	_, err = ParseWordOrder("")
	assert.Error(t, err)
}
