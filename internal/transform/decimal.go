// Fixed-point helpers for decimal-shaped columns.
//
// The legacy store keeps monetary values as binary floating point while the
// target store declares fixed-point decimals (scale 2 for currency, scale 8
// for fine-grained amounts). Quantization must round exactly once, at the
// declared scale; any further rounding would show up as drift in the
// aggregate-sum verification.

package transform

import "math"

// Quantize rounds v to the given decimal scale using round-half-away-from-
// zero, matching what fixed-point storage does on insert.
func Quantize(v float64, scale int) float64 {
	if scale <= 0 {
		return math.Round(v)
	}
	pow := math.Pow10(scale)
	return math.Round(v*pow) / pow
}

// Epsilon returns the comparison tolerance for aggregate checks over a column
// with the given scale: one unit in the last declared decimal place. A
// per-row rounding error is at most half a unit, so sums that disagree by
// more than this cannot be explained by quantization alone.
func Epsilon(scale int) float64 {
	if scale <= 0 {
		return 0.5
	}
	return math.Pow10(-scale)
}
