// ABOUTME: Audio format state and sample layout helpers
// ABOUTME: Defines negotiated rates/channels and interleaving conversions
package audio

import "math"

// Format describes the negotiated stream format for a pipeline run.
// It is set once at pipeline start and immutable during a run.
type Format struct {
	SampleRateIn      int
	SampleRateOut     int
	Channels          int
	InputInterleaved  bool
	OutputInterleaved bool
}

// NeedsResampling reports whether input and output clocks run at
// different nominal rates.
func (f Format) NeedsResampling() bool {
	return f.SampleRateIn != f.SampleRateOut
}

// Ratio returns the nominal output/input rate ratio.
func (f Format) Ratio() float64 {
	return float64(f.SampleRateOut) / float64(f.SampleRateIn)
}

// Interleave packs planar channel buffers into an interleaved buffer.
// dst must hold frames*len(planes) samples.
func Interleave(dst []float32, planes [][]float32, frames int) {
	channels := len(planes)
	for ch, plane := range planes {
		for i := 0; i < frames; i++ {
			dst[i*channels+ch] = plane[i]
		}
	}
}

// Deinterleave unpacks an interleaved buffer into planar channel buffers.
func Deinterleave(planes [][]float32, src []float32, frames int) {
	channels := len(planes)
	for ch := range planes {
		for i := 0; i < frames; i++ {
			planes[ch][i] = src[i*channels+ch]
		}
	}
}

// MixToMono averages all channels of an interleaved buffer into dst.
// dst must hold frames samples.
func MixToMono(dst, src []float32, channels, frames int) {
	if channels == 1 {
		copy(dst[:frames], src[:frames])
		return
	}
	scale := float32(1.0) / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += src[base+ch]
		}
		dst[i] = sum * scale
	}
}

// ApplyVolume scales samples in place. volume is linear (1.0 = unity).
func ApplyVolume(samples []float32, volume float32) {
	if volume == 1.0 {
		return
	}
	for i := range samples {
		samples[i] *= volume
	}
}

// DBToLinear converts a decibel value to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// LinearToDB converts a linear amplitude to decibels, floored at -120 dB
// to keep silence finite.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return -120.0
	}
	db := 20.0 * math.Log10(linear)
	if db < -120.0 {
		return -120.0
	}
	return db
}

// PeakRMS measures the peak absolute value and RMS of an interleaved
// buffer, for output level metering.
func PeakRMS(samples []float32) (peak, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sumSquares += v * v
	}
	rms = math.Sqrt(sumSquares / float64(len(samples)))
	return peak, rms
}
