package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeCodes(t *testing.T) {
	t.Run("codes are prefixed and unique", func(t *testing.T) {
		g, err := NewSnowflakeCodes(3)
		require.NoError(t, err)

		seen := make(map[string]struct{})
		for range 1000 {
			code := g.NextSheetCode()
			assert.True(t, strings.HasPrefix(code, SheetCodePrefix))
			assert.Equal(t, strings.ToUpper(code), code)
			_, dup := seen[code]
			require.False(t, dup, "duplicate code %s", code)
			seen[code] = struct{}{}
		}
	})

	t.Run("rejects node outside 10 bits", func(t *testing.T) {
		_, err := NewSnowflakeCodes(1024)
		assert.Error(t, err)
	})
}
