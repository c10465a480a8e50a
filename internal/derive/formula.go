package derive

import "math"

// WarmupIters is floor(ratio x iters). Products that land within rounding
// noise of an integer (0.29 x 100) count as that integer.
func WarmupIters(ratio float64, iters int64) int64 {
	w := ratio * float64(iters)
	if r := math.Round(w); math.Abs(w-r) <= 1e-9*math.Max(1, math.Abs(w)) {
		return int64(r)
	}
	return int64(math.Floor(w))
}

// PrefetchBucket is floor(0.9 x hidden^2), computed in integers.
func PrefetchBucket(hiddenSq int64) int64 {
	return hiddenSq/10*9 + hiddenSq%10*9/10
}
