// ABOUTME: Tests for the spectrum analyzer
// ABOUTME: Covers band mapping, meter decay, normalization, and publishing
package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedSine(a *Analyzer, freq float64, sampleRate, frames int, amp float64) {
	buf := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		buf[i*2] = v
		buf[i*2+1] = v
	}
	a.Process(buf, frames)
}

func peakBand(bands [NumBands]float32) int {
	best := 0
	for i := range bands {
		if bands[i] > bands[best] {
			best = i
		}
	}
	return best
}

func TestSineLandsInExpectedBand(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	feedSine(a, 1000, 44100, 4096, 0.8)
	bands := a.Bands()

	// 1 kHz sits near the upper-middle of the 32 Hz - 16 kHz log range.
	got := peakBand(bands)
	assert.GreaterOrEqual(t, got, 7, "1 kHz band index")
	assert.LessOrEqual(t, got, 10, "1 kHz band index")
	assert.Greater(t, bands[got], float32(0.1), "the hit band should register energy")
}

func TestLowSineLandsLow(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	feedSine(a, 60, 44100, 4096, 0.8)
	got := peakBand(a.Bands())
	assert.LessOrEqual(t, got, 3, "60 Hz should land in the bottom bands")
}

func TestBandsAreNormalized(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	// Heavily clipped content pushes magnitudes to the ceiling.
	buf := make([]float32, 4096*2)
	for i := range buf {
		if i%4 < 2 {
			buf[i] = 1
		} else {
			buf[i] = -1
		}
	}
	a.Process(buf, 4096)

	for band, v := range a.Bands() {
		assert.GreaterOrEqual(t, v, float32(0), "band %d", band)
		assert.LessOrEqual(t, v, float32(1), "band %d", band)
	}
}

func TestMeterDecay(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	feedSine(a, 1000, 44100, 4096, 0.8)
	band := peakBand(a.Bands())
	loud := a.Bands()[band]
	require.Greater(t, loud, float32(0))

	// One silent analysis window: the meter falls by the decay factor.
	silence := make([]float32, 1024*2)
	a.Process(silence, 1024)
	afterOne := a.Bands()[band]
	assert.InDelta(t, float64(loud)*0.85, float64(afterOne), 1e-3)

	for i := 0; i < 40; i++ {
		a.Process(silence, 1024)
	}
	assert.Less(t, a.Bands()[band], float32(0.01), "meters should decay toward zero")
}

func TestFramePublishing(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	feedSine(a, 1000, 44100, 4096, 0.8)

	select {
	case frame := <-a.Frames():
		assert.Greater(t, frame.Bands[peakBand(frame.Bands)], float32(0))
	default:
		t.Fatal("expected at least one published frame")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	// Nobody reads Frames(); the analyzer must keep going regardless.
	for i := 0; i < 50; i++ {
		feedSine(a, 1000, 44100, 1024, 0.8)
	}
}

func TestRefreshRateLimiting(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1) // one frame per second

	for i := 0; i < 20; i++ {
		feedSine(a, 1000, 44100, 1024, 0.8)
	}

	count := 0
	for {
		select {
		case <-a.Frames():
			count++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, count, 1, "rate limit should suppress almost all frames")
}

func TestReset(t *testing.T) {
	a := NewAnalyzer(44100, 2, 1000)

	feedSine(a, 1000, 44100, 4096, 0.8)
	a.Reset()

	for band, v := range a.Bands() {
		assert.Equal(t, float32(0), v, "band %d should clear on reset", band)
	}
}
