package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(123)
	require.NoError(t, err)
	assert.Equal(t, 123, got)

	got, err = Uint64ToInt(uint64(math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got)

	_, err = Uint64ToInt(uint64(math.MaxInt) + 1)
	assert.Error(t, err)
}
