// ABOUTME: Tests for the biquad filter sections
// ABOUTME: Verifies RBJ responses and click-free coefficient changes
package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sineGain feeds a sine through the filter and returns the steady-state
// output/input RMS ratio, skipping the first half as warm-up.
func sineGain(b *Biquad, freq, sampleRate float64, n int) float64 {
	var inSum, outSum float64
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		y := float64(b.ProcessSample(float32(x)))
		if i >= n/2 {
			inSum += x * x
			outSum += y * y
		}
	}
	return math.Sqrt(outSum / inSum)
}

func TestPeakingUnityGainIsTransparent(t *testing.T) {
	b := NewBiquad()
	b.SetPeaking(44100, 1000, 1.0, 0)

	for i := 0; i < 200; i++ {
		x := float32(math.Sin(float64(i) * 0.1))
		assert.InDelta(t, x, b.ProcessSample(x), 1e-4)
	}
}

func TestPeakingBoostAtCenter(t *testing.T) {
	b := NewBiquad()
	b.SetPeaking(44100, 1000, 1.0, 12)

	gain := sineGain(b, 1000, 44100, 8820)
	// +12 dB is a linear factor of ~3.98.
	assert.InDelta(t, 3.98, gain, 0.3)
}

func TestPeakingCutAtCenter(t *testing.T) {
	b := NewBiquad()
	b.SetPeaking(44100, 1000, 1.0, -12)

	gain := sineGain(b, 1000, 44100, 8820)
	assert.InDelta(t, 0.25, gain, 0.05)
}

func TestPeakingLeavesDistantFrequencies(t *testing.T) {
	b := NewBiquad()
	b.SetPeaking(44100, 1000, 1.0, 12)

	gain := sineGain(b, 60, 44100, 44100)
	assert.InDelta(t, 1.0, gain, 0.1, "a 1 kHz peak should not move 60 Hz")
}

func TestLowpassResponse(t *testing.T) {
	b := NewBiquad()
	b.SetLowpass(44100, 1000, 0.707)
	passGain := sineGain(b, 100, 44100, 44100)
	assert.InDelta(t, 1.0, passGain, 0.1)

	b.Reset()
	b.SetLowpass(44100, 1000, 0.707)
	stopGain := sineGain(b, 10000, 44100, 8820)
	assert.Less(t, stopGain, 0.05, "10 kHz should be far down a 1 kHz lowpass")
}

func TestHighpassResponse(t *testing.T) {
	b := NewBiquad()
	b.SetHighpass(44100, 1000, 0.707)
	passGain := sineGain(b, 10000, 44100, 8820)
	assert.InDelta(t, 1.0, passGain, 0.1)

	b.Reset()
	b.SetHighpass(44100, 1000, 0.707)
	stopGain := sineGain(b, 100, 44100, 44100)
	assert.Less(t, stopGain, 0.05)
}

func TestCoefficientChangeKeepsState(t *testing.T) {
	b := NewBiquad()
	b.SetPeaking(44100, 1000, 1.0, 6)

	var prev float32
	for i := 0; i < 4410; i++ {
		x := float32(math.Sin(2 * math.Pi * 100 * float64(i) / 44100))
		y := b.ProcessSample(x)
		if i == 2205 {
			// Mid-stream gain change must not discontinue the output.
			b.SetPeaking(44100, 1000, 1.0, 5)
		}
		if i > 0 {
			assert.Less(t, math.Abs(float64(y-prev)), 0.05,
				"output jumped at sample %d", i)
		}
		prev = y
	}
}

func TestProcessBuffer(t *testing.T) {
	single := NewBiquad()
	single.SetLowpass(44100, 2000, 0.707)
	buffered := NewBiquad()
	buffered.SetLowpass(44100, 2000, 0.707)

	buf := make([]float32, 512)
	want := make([]float32, 512)
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i) * 0.05))
		want[i] = single.ProcessSample(buf[i])
	}

	buffered.Process(buf)
	for i := range buf {
		assert.Equal(t, want[i], buf[i], "sample %d", i)
	}
}

func TestBiquadReset(t *testing.T) {
	b := NewBiquad()
	b.SetLowpass(44100, 1000, 0.707)

	for i := 0; i < 100; i++ {
		b.ProcessSample(0.9)
	}
	b.Reset()
	assert.Equal(t, float32(0), b.ProcessSample(0), "state should be cleared")
}
