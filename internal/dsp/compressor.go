// ABOUTME: Block-based dynamic range compressor with envelope follower
// ABOUTME: Control-rate gain computed per sub-block, no per-call allocation
package dsp

import "math"

// subBlockFrames amortizes envelope and gain computation: the detector
// runs once per sub-block instead of per sample.
const subBlockFrames = 32

// thresholdBypassLinear treats thresholds at or below this linear level
// as "off": only makeup gain is applied.
const thresholdBypassLinear = 1e-6

// CompressorParams are the user-facing compressor settings.
type CompressorParams struct {
	ThresholdDB  float64
	Ratio        float64
	AttackMs     float64
	ReleaseMs    float64
	MakeupGainDB float64
}

// Compressor reduces dynamic range of interleaved audio in place.
// SetParameters must not race with Process; the pipeline serializes
// parameter updates onto the consumer thread via snapshots.
type Compressor struct {
	sampleRate int
	channels   int

	// Cached linear coefficients derived from the last SetParameters.
	threshold    float32
	exponent     float64 // 1 - 1/ratio
	attackCoeff  float32
	releaseCoeff float32
	makeup       float32

	envelope float32
}

// NewCompressor creates a compressor with unity settings.
func NewCompressor(sampleRate, channels int) *Compressor {
	c := &Compressor{
		sampleRate: sampleRate,
		channels:   channels,
	}
	c.SetParameters(CompressorParams{
		ThresholdDB: 0,
		Ratio:       1,
		AttackMs:    10,
		ReleaseMs:   100,
	})
	return c
}

// SetParameters recomputes the cached linear coefficients.
func (c *Compressor) SetParameters(p CompressorParams) {
	if p.Ratio < 1 {
		p.Ratio = 1
	}
	if p.AttackMs < 0.1 {
		p.AttackMs = 0.1
	}
	if p.ReleaseMs < 1 {
		p.ReleaseMs = 1
	}
	c.threshold = float32(math.Pow(10.0, p.ThresholdDB/20.0))
	if p.ThresholdDB <= -120 {
		c.threshold = 0
	}
	c.exponent = 1.0 - 1.0/p.Ratio
	c.attackCoeff = float32(math.Exp(-1.0 / (p.AttackMs * 0.001 * float64(c.sampleRate) / subBlockFrames)))
	c.releaseCoeff = float32(math.Exp(-1.0 / (p.ReleaseMs * 0.001 * float64(c.sampleRate) / subBlockFrames)))
	c.makeup = float32(math.Pow(10.0, p.MakeupGainDB/20.0))
}

// Envelope returns the current detector envelope (linear).
func (c *Compressor) Envelope() float32 {
	return c.envelope
}

// Process compresses frames frames of interleaved audio in place.
func (c *Compressor) Process(samples []float32, frames int) {
	if c.threshold <= thresholdBypassLinear {
		// Fast path: compressor off, makeup only.
		if c.makeup != 1.0 {
			n := frames * c.channels
			for i := 0; i < n; i++ {
				samples[i] *= c.makeup
			}
		}
		return
	}

	for start := 0; start < frames; start += subBlockFrames {
		end := start + subBlockFrames
		if end > frames {
			end = frames
		}

		// Peak detector over the sub-block, all channels.
		var peak float32
		for i := start * c.channels; i < end*c.channels; i++ {
			v := samples[i]
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}

		// One-pole attack/release envelope follower.
		if peak > c.envelope {
			c.envelope = c.attackCoeff*c.envelope + (1-c.attackCoeff)*peak
		} else {
			c.envelope = c.releaseCoeff*c.envelope + (1-c.releaseCoeff)*peak
		}
		c.envelope = flushDenormal(c.envelope)

		gain := c.makeup
		if c.envelope > c.threshold {
			gain = float32(fastPow(float64(c.threshold/c.envelope), c.exponent)) * c.makeup
		}

		if gain == 1.0 {
			continue
		}
		for i := start * c.channels; i < end*c.channels; i++ {
			samples[i] *= gain
		}
	}
}

// Reset clears the envelope for a fresh run.
func (c *Compressor) Reset() {
	c.envelope = 0
}

// fastPow approximates base^exp with a second-order Taylor expansion of
// exp(exp*ln(base)) when base is close to 1, where the expansion is
// accurate to well under the gain resolution that is audible. Outside
// that range it falls back to the exact power.
func fastPow(base, exp float64) float64 {
	if base > 0.9 && base < 1.1 {
		l := base - 1.0
		l -= l * l / 2.0 // ln(base) ≈ (b-1) - (b-1)²/2 near 1
		x := exp * l
		return 1.0 + x + x*x/2.0
	}
	return math.Pow(base, exp)
}
