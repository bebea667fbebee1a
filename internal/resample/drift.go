// ABOUTME: Drift controller computing smooth resample ratio corrections
// ABOUTME: Steers ring buffer fill toward target without audible pitch flutter
package resample

// Drift correction tuning. The hysteresis dead-band prevents oscillation
// around the target fill; the correction threshold is where proportional
// steering begins; full correction is reached proportionalSpan frames
// past that threshold.
const (
	DefaultHysteresisFrames = 256
	DefaultCorrectionFrames = 512
	defaultMaxDeviation     = 0.001
	defaultSmoothing        = 0.1
	proportionalSpan        = 4096
)

// DriftController converts ring buffer fill error into a resample ratio
// correction in [1-maxDeviation, 1+maxDeviation]. It is owned by the
// producer thread together with the resampler; no locking.
type DriftController struct {
	current float64
	target  float64

	hysteresis   int
	correction   int
	maxDeviation float64
	smoothing    float64
}

// NewDriftController creates a controller with the given dead-band and
// correction thresholds in frames. Zero values select the defaults.
func NewDriftController(hysteresis, correction int) *DriftController {
	if hysteresis <= 0 {
		hysteresis = DefaultHysteresisFrames
	}
	if correction <= hysteresis {
		correction = DefaultCorrectionFrames
	}
	return &DriftController{
		current:      1.0,
		target:       1.0,
		hysteresis:   hysteresis,
		correction:   correction,
		maxDeviation: defaultMaxDeviation,
		smoothing:    defaultSmoothing,
	}
}

// CalculateRatio returns the ratio adjustment for the next resample call.
// The returned value moves toward the correction target by a fixed
// smoothing fraction per call, so consecutive ratios never differ by
// more than smoothing*2*maxDeviation.
func (d *DriftController) CalculateRatio(availableFrames, targetFrames int) float64 {
	diff := availableFrames - targetFrames

	switch {
	case diff > d.correction:
		// Buffer too full: produce faster than 1:1 so it drains.
		excess := float64(diff - d.correction)
		dev := d.maxDeviation * excess / proportionalSpan
		if dev > d.maxDeviation {
			dev = d.maxDeviation
		}
		d.target = 1.0 + dev
	case diff < -d.correction:
		// Buffer too empty: slow down so it fills.
		excess := float64(-diff - d.correction)
		dev := d.maxDeviation * excess / proportionalSpan
		if dev > d.maxDeviation {
			dev = d.maxDeviation
		}
		d.target = 1.0 - dev
	case diff <= d.hysteresis && diff >= -d.hysteresis:
		// Inside the dead-band: relax back to no correction.
		d.target += (1.0 - d.target) * d.smoothing
	}
	// Between hysteresis and correction threshold the target holds.

	d.current += (d.target - d.current) * d.smoothing

	if d.current > 1.0+d.maxDeviation {
		d.current = 1.0 + d.maxDeviation
	} else if d.current < 1.0-d.maxDeviation {
		d.current = 1.0 - d.maxDeviation
	}
	return d.current
}

// Ratio returns the last computed ratio without advancing the controller.
func (d *DriftController) Ratio() float64 {
	return d.current
}

// Reset returns both ratios to 1.0 for a fresh run.
func (d *DriftController) Reset() {
	d.current = 1.0
	d.target = 1.0
}
