// ABOUTME: Flush-to-zero helper for recursive filter state
// ABOUTME: Prevents denormal slowdowns on near-silent signals
package dsp

// denormalThreshold is well above the float32 subnormal range; values
// this small are inaudible and only cost CPU in IIR feedback paths.
const denormalThreshold = 1e-15

// flushDenormal snaps sub-normal magnitudes to exact zero.
func flushDenormal(v float32) float32 {
	if v < denormalThreshold && v > -denormalThreshold {
		return 0
	}
	return v
}
