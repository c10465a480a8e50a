package value

import "math"

// MulInt multiplies xs; ok is false on int64 overflow.
func MulInt(xs ...int64) (product int64, ok bool) {
	product = 1
	for _, x := range xs {
		if x == 0 || product == 0 {
			product = 0
			continue
		}
		r := product * x
		if r/x != product || (product == -1 && x == math.MinInt64) || (x == -1 && product == math.MinInt64) {
			return 0, false
		}
		product = r
	}
	return product, true
}
