package register

import (
	"fmt"
	"math/bits"
	"strings"
)

// ByteOrder is the order of the two bytes inside one 16-bit register.
type ByteOrder uint8

const (
	ByteOrderBig ByteOrder = iota
	ByteOrderLittle
)

// WordOrder is the order of the two registers that carry one 32-bit value.
type WordOrder uint8

const (
	// WordOrderBig puts the high word in the first register.
	WordOrderBig WordOrder = iota
	// WordOrderLittle puts the low word in the first register.
	WordOrderLittle
)

// Orders bundles the byte and word order used on both sides of a PLC link.
type Orders struct {
	Byte ByteOrder
	Word WordOrder
}

// ParseByteOrder accepts "big"/">" and "little"/"<".
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "big", ">":
		return ByteOrderBig, nil
	case "little", "<":
		return ByteOrderLittle, nil
	}
	return 0, fmt.Errorf("invalid byte order %q: must be 'big' or 'little'", s)
}

// ParseWordOrder accepts "big"/">" and "little"/"<".
func ParseWordOrder(s string) (WordOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "big", ">":
		return WordOrderBig, nil
	case "little", "<":
		return WordOrderLittle, nil
	}
	return 0, fmt.Errorf("invalid word order %q: must be 'big' or 'little'", s)
}

func (o ByteOrder) String() string {
	if o == ByteOrderLittle {
		return "little"
	}
	return "big"
}

func (o WordOrder) String() string {
	if o == WordOrderLittle {
		return "little"
	}
	return "big"
}

// apply converts between wire and host representation of a register.
// The swap is its own inverse so the same call serves both directions.
func (o ByteOrder) apply(r uint16) uint16 {
	if o == ByteOrderLittle {
		return bits.ReverseBytes16(r)
	}
	return r
}
