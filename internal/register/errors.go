package register

import (
	"errors"
	"fmt"
	"net"

	"github.com/goburrow/modbus"
)

// ErrMalformed is returned when a register block has the wrong number of registers.
var ErrMalformed = errors.New("malformed register block")

// RegisterAccessError reports a failed read, write, or decode of a register block.
// Callers treat every RegisterAccessError as retryable.
type RegisterAccessError struct {
	Op      string
	Address uint16
	Count   int
	Err     error
}

func (e *RegisterAccessError) Error() string {
	return fmt.Sprintf("%s %d register(s) at %d: %v", e.Op, e.Count, e.Address, e.Err)
}

func (e *RegisterAccessError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying transport timed out.
func (e *RegisterAccessError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Exception returns the Modbus exception code, or 0 if the PLC did not answer with one.
func (e *RegisterAccessError) Exception() byte {
	var mbErr *modbus.ModbusError
	if errors.As(e.Err, &mbErr) {
		return mbErr.ExceptionCode
	}
	return 0
}

// Cause classifies a register access failure for logging: "timeout",
// "exception N" for a Modbus exception, "transport" otherwise. It returns ""
// when err did not come from the register layer.
func Cause(err error) string {
	var rae *RegisterAccessError
	if !errors.As(err, &rae) {
		return ""
	}
	switch {
	case rae.Timeout():
		return "timeout"
	case rae.Exception() != 0:
		return fmt.Sprintf("exception %d", rae.Exception())
	default:
		return "transport"
	}
}

// IsAccessError reports whether err came from the register layer.
func IsAccessError(err error) bool {
	var rae *RegisterAccessError
	return errors.As(err, &rae)
}
