package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevColor := Out, Err, color.NoColor
	Out, Err, color.NoColor = &out, &errOut, true
	t.Cleanup(func() {
		Out, Err, color.NoColor = prevOut, prevErr, prevColor
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("PLC unreachable", "Could not connect to 10.0.0.5:502", nil)
		require.EqualError(t, err, "PLC unreachable")
		assert.Contains(t, errOut.String(), "Could not connect to 10.0.0.5:502")
	})

	t.Run("single suggestion printed plainly", func(t *testing.T) {
		_, errOut := capture(t)
		Error("bad flag", "x is required", []string{"Pass --x"})
		assert.Contains(t, errOut.String(), "\nPass --x\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions numbered", func(t *testing.T) {
		_, errOut := capture(t)
		Error("bad flag", "", []string{"first", "second"})
		assert.Contains(t, errOut.String(), "Either:\n  1. first\n  2. second\n")
	})
}

func TestErrorWithContext_SortedKeys(t *testing.T) {
	_, errOut := capture(t)
	err := ErrorWithContext("Redis connection failed", "", map[string]string{
		"url":      "redis://localhost:6379",
		"instance": "cell-1",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "  instance: cell-1\n  url: redis://localhost:6379\n")
}

func TestSuccessAndWarning(t *testing.T) {
	out, _ := capture(t)
	Success("seed set\n")
	Success("✓ already prefixed\n")
	Warning("overwriting locbridge.yml\n")
	assert.Equal(t, "✓ seed set\n✓ already prefixed\n⚠️  overwriting locbridge.yml\n", out.String())
}

func TestFields(t *testing.T) {
	out, _ := capture(t)
	Fields(Field{"x", "1.500"}, Field{"state", "2"})
	assert.Equal(t, "x:     1.500\nstate: 2\n", out.String())
}
