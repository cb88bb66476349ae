package socscript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateOfCharge(t *testing.T) {
	s, err := New(Config{Command: []string{"echo", "42.5%"}})
	require.NoError(t, err)
	v, err := s.StateOfCharge(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.5, v, 1e-9)
}

func TestStateOfChargeErrors(t *testing.T) {
	ctx := context.Background()
	for name, cmd := range map[string][]string{
		"garbage":      {"echo", "unknown"},
		"empty":        {"true"},
		"out of range": {"echo", "140"},
		"failing":      {"false"},
		"missing":      {"/nonexistent/soc-script"},
	} {
		s, err := New(Config{Command: cmd})
		require.NoError(t, err, name)
		_, err = s.StateOfCharge(ctx)
		assert.Error(t, err, name)
	}
}

func TestStateOfChargeTimeout(t *testing.T) {
	s, err := New(Config{Command: []string{"sleep", "5"}, TimeoutMS: 50})
	require.NoError(t, err)
	_, err = s.StateOfCharge(context.Background())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestCommandLine(t *testing.T) {
	s, err := New(Config{Line: `sh -c 'echo "63 %"'`})
	require.NoError(t, err)
	v, err := s.StateOfCharge(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 63, v, 1e-9)

	_, err = New(Config{Line: `echo "unterminated`})
	assert.Error(t, err)
	_, err = New(Config{Line: "   "})
	assert.Error(t, err)
}
