package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtons(t *testing.T) {
	t.Run("Rising Edges", func(t *testing.T) {
		prev := SeekUp | Memory
		cur := SeekUp | VolumeDown
		assert.Equal(t, VolumeDown, cur.Rising(prev))
		assert.Equal(t, Buttons(0), prev.Rising(prev))
	})

	t.Run("Has", func(t *testing.T) {
		b := SeekDown | Memory
		assert.True(t, b.Has(Memory))
		assert.False(t, b.Has(VolumeUp))
		assert.False(t, b.Has(0))
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "none", Buttons(0).String())
		assert.Equal(t, "seek-up+memory", (SeekUp | Memory).String())
	})

	t.Run("Parse", func(t *testing.T) {
		for _, name := range ButtonNames() {
			b, err := ParseButton(name)
			require.NoError(t, err)
			assert.Equal(t, name, b.String())
		}
		b, err := ParseButton(" VOLUME_UP ")
		require.NoError(t, err)
		assert.Equal(t, VolumeUp, b)

		_, err = ParseButton("power")
		assert.Error(t, err)
	})
}
