package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches the outer code", func(t *testing.T) {
		err := New(CodeValidation, "field missing")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "no such request")
		wrapped := fmt.Errorf("handler: %w", inner)
		assert.True(t, HasCode(wrapped, CodeNotFound))
	})

	t.Run("uncoded errors match nothing", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "ledger unreachable")

	require.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.Contains(t, err.Error(), "ledger unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	// The outermost code wins when coded errors nest.
	inner := New(CodeNotFound, "missing")
	outer := Wrap(inner, CodeInternal, "lookup failed")
	assert.Equal(t, CodeInternal, CodeOf(outer))
}
