// ABOUTME: Capture source interface and built-in test tone generator
// ABOUTME: Sources deliver interleaved float32 blocks at their native rate
package source

import (
	"math"
)

// CaptureSource provides interleaved float32 audio to the pipeline.
type CaptureSource interface {
	// Read fills samples with interleaved audio and returns the number
	// of frames written. Returns io.EOF when the source is exhausted.
	Read(samples []float32) (frames int, err error)

	// SampleRate returns the source's native sample rate in Hz.
	SampleRate() int

	// Channels returns the source's channel count.
	Channels() int

	// Close releases source resources.
	Close() error
}

// ToneSource generates a continuous sine tone for testing and
// latency measurement.
type ToneSource struct {
	sampleRate int
	channels   int
	frequency  float64
	amplitude  float64
	phase      float64
}

// NewToneSource creates a sine generator at the given frequency.
func NewToneSource(sampleRate, channels int, frequency, amplitude float64) *ToneSource {
	return &ToneSource{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		amplitude:  amplitude,
	}
}

// Read fills samples with the next block of the tone.
func (t *ToneSource) Read(samples []float32) (int, error) {
	frames := len(samples) / t.channels
	step := 2 * math.Pi * t.frequency / float64(t.sampleRate)

	for i := 0; i < frames; i++ {
		v := float32(t.amplitude * math.Sin(t.phase))
		for ch := 0; ch < t.channels; ch++ {
			samples[i*t.channels+ch] = v
		}
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}

	return frames, nil
}

// SampleRate returns the generator's sample rate.
func (t *ToneSource) SampleRate() int { return t.sampleRate }

// Channels returns the generator's channel count.
func (t *ToneSource) Channels() int { return t.channels }

// Close is a no-op for the tone generator.
func (t *ToneSource) Close() error { return nil }
