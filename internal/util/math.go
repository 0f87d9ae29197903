package util

import "math"

// Smooth blends a new value into an old value using the smoothingFactor, where a factor of 1.0 takes the new value
// entirely and a factor of 0.0 keeps the old value entirely.
func Smooth(oldValue, newValue, smoothingFactor float64) float64 {
	return oldValue*(1-smoothingFactor) + newValue*smoothingFactor
}

// log10Table holds precomputed log10 values for limits in [0, log10TableSize), avoiding repeated math.Log10 calls on
// the hot path for the common case of small limits.
const log10TableSize = 1000

var log10Table [log10TableSize]float64

func init() {
	for i := 1; i < log10TableSize; i++ {
		log10Table[i] = math.Log10(float64(i))
	}
}

// Log10 returns log10(n), using a precomputed table for n < 1000 and falling through to math.Log10 beyond that.
func Log10(n int) float64 {
	if n <= 0 {
		return 0
	}
	if n < log10TableSize {
		return log10Table[n]
	}
	return math.Log10(float64(n))
}

// Log10RootFunction returns a function of a limit that computes coefficient*log10(limit), with a floor of 1, useful
// for computing Vegas-style alpha/beta/increase/decrease thresholds that scale sub-linearly with the limit.
func Log10RootFunction(coefficient float64) func(int) int {
	return func(limit int) int {
		v := int(math.Ceil(coefficient * Log10(limit)))
		if v < 1 {
			return 1
		}
		return v
	}
}

// SquareRoot computes ceil(sqrt(limit)), used by estimators that want a queue
// tolerance proportional to the square root of the limit rather than its log.
func SquareRoot(limit int) int {
	return int(math.Ceil(math.Sqrt(float64(limit))))
}

// ClampInt clamps n to [min, max].
func ClampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// ClampFloat clamps n to [min, max].
func ClampFloat(n, min, max float64) float64 {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
