package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef(t *testing.T) {
	t.Run("confirmed refs carry their signature", func(t *testing.T) {
		ref := Confirmed("5xyzSignature")
		assert.True(t, ref.IsConfirmed())
		assert.False(t, ref.IsZero())
		assert.Equal(t, "5xyzSignature", ref.Value())
	})

	t.Run("degraded refs are tagged placeholders", func(t *testing.T) {
		ref := Degraded()
		assert.False(t, ref.IsConfirmed())
		assert.False(t, ref.IsZero())
		require.True(t, strings.HasPrefix(ref.Value(), "dev-"))
	})

	t.Run("degraded refs are unique", func(t *testing.T) {
		assert.NotEqual(t, Degraded().Value(), Degraded().Value())
	})

	t.Run("zero ref", func(t *testing.T) {
		var ref Ref
		assert.True(t, ref.IsZero())
		assert.False(t, ref.IsConfirmed())
	})

	t.Run("round trips through storage", func(t *testing.T) {
		stored := FromStored("5xyzSignature", true)
		assert.Equal(t, Confirmed("5xyzSignature"), stored)

		placeholder := Degraded()
		assert.Equal(t, placeholder, FromStored(placeholder.Value(), false))
	})
}
