package conv

import (
	"fmt"
	"math"
)

// Uint64ToInt converts a length read from disk to int, failing instead of
// wrapping when it does not fit.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d does not fit in int", v)
	}
	return int(v), nil
}
