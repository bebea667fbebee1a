// ABOUTME: Tests for the block compressor's envelope and gain behavior
// ABOUTME: Covers bypass, attack/release timing, and steady-state ratios
package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantBlock(frames, channels int, level float32) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = level
	}
	return out
}

func TestBypassBelowThresholdFloor(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -120,
		Ratio:       4,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	buf := constantBlock(256, 2, 0.8)
	c.Process(buf, 256)
	for i := range buf {
		require.Equal(t, float32(0.8), buf[i], "bypass must not touch samples")
	}
}

func TestBypassAppliesMakeup(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB:  -120,
		Ratio:        4,
		AttackMs:     10,
		ReleaseMs:    100,
		MakeupGainDB: 6,
	})

	buf := constantBlock(64, 2, 0.25)
	c.Process(buf, 64)
	assert.InDelta(t, 0.25*1.995, buf[0], 0.01)
}

func TestUnityRatioIsTransparent(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       1,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	buf := constantBlock(512, 2, 0.8)
	c.Process(buf, 512)
	for i := range buf {
		assert.InDelta(t, 0.8, buf[i], 1e-4)
	}
}

func TestEnvelopeTracksLoudInput(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       4,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	// 512 frames at 0.8: roughly 11.6ms, past one 10ms attack constant.
	buf := constantBlock(512, 2, 0.8)
	c.Process(buf, 512)

	env := float64(c.Envelope())
	assert.Greater(t, env, 0.4, "envelope should be well on its way to the peak")
	assert.Less(t, env, 0.8, "envelope cannot exceed its input")
}

func TestSteadyStateRatio(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       4,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	// Drive to steady state: envelope converges to the 0.8 peak.
	for i := 0; i < 50; i++ {
		c.Process(constantBlock(512, 2, 0.8), 512)
	}

	buf := constantBlock(512, 2, 0.8)
	c.Process(buf, 512)

	// Input is ~18 dB over the -20 dB threshold. At 4:1 the output sits
	// at threshold + 18/4 dB = -15.5 dBFS ≈ 0.168.
	got := float64(buf[len(buf)-1])
	want := 0.1 * math.Pow(0.8/0.1, 0.25)
	assert.InDelta(t, want, got, 0.01)
}

func TestReleaseDecaysEnvelope(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       4,
		AttackMs:    1,
		ReleaseMs:   50,
	})

	for i := 0; i < 20; i++ {
		c.Process(constantBlock(512, 2, 0.8), 512)
	}
	loud := c.Envelope()

	silence := constantBlock(512, 2, 0)
	c.Process(silence, 512)
	afterOne := c.Envelope()
	for i := 0; i < 20; i++ {
		c.Process(constantBlock(512, 2, 0), 512)
	}

	assert.Less(t, afterOne, loud, "envelope must fall in silence")
	assert.Less(t, float64(c.Envelope()), 0.01, "envelope should decay toward zero")
}

func TestQuietSignalPassesUnchanged(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       4,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	buf := constantBlock(512, 2, 0.05) // -26 dBFS, below threshold
	c.Process(buf, 512)
	for i := range buf {
		assert.InDelta(t, 0.05, buf[i], 1e-4)
	}
}

func TestCompressorReset(t *testing.T) {
	c := NewCompressor(44100, 2)
	c.SetParameters(CompressorParams{
		ThresholdDB: -20,
		Ratio:       4,
		AttackMs:    10,
		ReleaseMs:   100,
	})

	c.Process(constantBlock(512, 2, 0.8), 512)
	require.Greater(t, c.Envelope(), float32(0))

	c.Reset()
	assert.Equal(t, float32(0), c.Envelope())
}
