// ABOUTME: Streaming cubic Hermite resampler with fine ratio adjustment
// ABOUTME: Carries phase and a 4-sample history per channel across calls
package resample

import "math"

// historyLen is the interpolation window size. Catmull-Rom needs one
// sample behind and two ahead of the interpolation interval.
const historyLen = 4

// Resampler converts interleaved float32 audio from the input rate to
// the output rate using 4-point Catmull-Rom Hermite interpolation, which
// avoids the overshoot and ringing of plain cubic fits. A per-call ratio
// adjustment from the drift controller bends the effective rate by up to
// ±0.1% to hide clock drift. Owned by the producer thread; no locking.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	baseRatio  float64 // outputRate / inputRate

	phase   float64 // fractional read position into the next block
	history [][historyLen]float32
}

// NewResampler creates a resampler for interleaved audio.
func NewResampler(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		baseRatio:  float64(outputRate) / float64(inputRate),
		history:    make([][historyLen]float32, channels),
	}
}

// MaxOutputFrames returns an upper bound on the frames Process can emit
// for a block of inFrames, accounting for the drift adjustment range.
// Callers size their output scratch with this once, at start.
func (r *Resampler) MaxOutputFrames(inFrames int) int {
	return int(float64(inFrames)*r.baseRatio*1.002) + historyLen
}

// Process resamples inFrames frames of interleaved input into out,
// returning the number of output frames written. ratioAdjust bends the
// base ratio (1.0 = nominal). out must hold MaxOutputFrames(inFrames)
// frames; no allocation happens here.
func (r *Resampler) Process(input []float32, inFrames int, out []float32, ratioAdjust float64) int {
	if inFrames <= 0 {
		return 0
	}

	// ratioAdjust > 1 walks the input faster, emitting fewer output
	// frames so an overfull ring can drain.
	step := ratioAdjust / r.baseRatio
	pos := r.phase
	outFrames := 0

	// The last input interval is deferred to the next call, where the
	// carried history supplies it with real right-hand neighbors. The
	// carried phase is negative in that case, so the read position must
	// floor rather than truncate.
	for pos < float64(inFrames-1) {
		f := math.Floor(pos)
		idx := int(f)
		frac := float32(pos - f)

		dst := outFrames * r.channels
		for ch := 0; ch < r.channels; ch++ {
			y0 := r.sampleAt(input, inFrames, idx-1, ch)
			y1 := r.sampleAt(input, inFrames, idx, ch)
			y2 := r.sampleAt(input, inFrames, idx+1, ch)
			y3 := r.sampleAt(input, inFrames, idx+2, ch)
			out[dst+ch] = hermite(y0, y1, y2, y3, frac)
		}
		outFrames++
		pos += step
	}

	// Carry the read position into the next block and refresh the
	// per-channel history with the trailing input samples.
	r.phase = pos - float64(inFrames)
	for ch := 0; ch < r.channels; ch++ {
		for i := 0; i < historyLen; i++ {
			r.history[ch][i] = r.sampleAt(input, inFrames, inFrames-historyLen+i, ch)
		}
	}

	return outFrames
}

// sampleAt fetches one channel sample at a virtual index: negative
// indices come from the previous block's history, indices past the end
// repeat the final sample. The end clamp is reachable only as the y3
// neighbor of the last emitted interval, never as an interval endpoint.
func (r *Resampler) sampleAt(input []float32, inFrames, idx, ch int) float32 {
	switch {
	case idx < 0:
		h := idx + historyLen
		if h < 0 {
			h = 0
		}
		return r.history[ch][h]
	case idx >= inFrames:
		idx = inFrames - 1
	}
	return input[idx*r.channels+ch]
}

// hermite evaluates the Catmull-Rom spline between y1 and y2 at t∈[0,1).
func hermite(y0, y1, y2, y3, t float32) float32 {
	c1 := 0.5 * (y2 - y0)
	c2 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	c3 := 0.5*(y3-y0) + 1.5*(y1-y2)
	return ((c3*t+c2)*t+c1)*t + y1
}

// Reset zeroes phase and history. Must be called whenever the pipeline
// is stopped and restarted or the rate relationship changes.
func (r *Resampler) Reset() {
	r.phase = 0
	for ch := range r.history {
		r.history[ch] = [historyLen]float32{}
	}
}

// Ratio returns the nominal conversion ratio.
func (r *Resampler) Ratio() float64 {
	return r.baseRatio
}
