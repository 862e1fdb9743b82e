package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "jagga/pkg/domain-errors"
)

func TestParseRequestID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRequestID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("round trips a valid UUID", func(t *testing.T) {
		raw := uuid.New().String()
		id, err := ParseRequestID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
		assert.False(t, id.IsNil())
	})
}

func TestParseParcelID(t *testing.T) {
	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseParcelID("xyz")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("round trips a valid UUID", func(t *testing.T) {
		raw := uuid.New().String()
		id, err := ParseParcelID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("zero value is nil", func(t *testing.T) {
		var id ParcelID
		assert.True(t, id.IsNil())
	})
}
