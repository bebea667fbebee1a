// ABOUTME: Second-order IIR filter section with RBJ coefficient design
// ABOUTME: Transposed direct form II; coefficient updates preserve state
package dsp

import "math"

// Biquad is a single second-order IIR section in transposed direct
// form II. Coefficients may be recomputed from the control path while
// z1/z2 keep running, so parameter changes never click.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32
	z1, z2     float32
}

// NewBiquad returns a pass-through section.
func NewBiquad() *Biquad {
	return &Biquad{b0: 1}
}

// SetCoefficients installs coefficients normalized by a0. Filter state
// is deliberately left untouched for continuity.
func (b *Biquad) SetCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	inv := 1.0 / a0
	b.b0 = float32(b0 * inv)
	b.b1 = float32(b1 * inv)
	b.b2 = float32(b2 * inv)
	b.a1 = float32(a1 * inv)
	b.a2 = float32(a2 * inv)
}

// SetPeaking configures the section as an RBJ peaking EQ.
func (b *Biquad) SetPeaking(sampleRate, frequency, q, gainDB float64) {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	amp := math.Pow(10.0, gainDB/40.0)
	alpha := sinOmega / (2.0 * q)

	b.SetCoefficients(
		1.0+alpha*amp,
		-2.0*cosOmega,
		1.0-alpha*amp,
		1.0+alpha/amp,
		-2.0*cosOmega,
		1.0-alpha/amp,
	)
}

// SetLowpass configures the section as an RBJ low-pass.
func (b *Biquad) SetLowpass(sampleRate, frequency, q float64) {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	b.SetCoefficients(
		(1.0-cosOmega)/2.0,
		1.0-cosOmega,
		(1.0-cosOmega)/2.0,
		1.0+alpha,
		-2.0*cosOmega,
		1.0-alpha,
	)
}

// SetHighpass configures the section as an RBJ high-pass.
func (b *Biquad) SetHighpass(sampleRate, frequency, q float64) {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	b.SetCoefficients(
		(1.0+cosOmega)/2.0,
		-(1.0 + cosOmega),
		(1.0+cosOmega)/2.0,
		1.0+alpha,
		-2.0*cosOmega,
		1.0-alpha,
	)
}

// ProcessSample filters one sample.
func (b *Biquad) ProcessSample(x float32) float32 {
	y := b.b0*x + b.z1
	b.z1 = flushDenormal(b.b1*x - b.a1*y + b.z2)
	b.z2 = flushDenormal(b.b2*x - b.a2*y)
	return y
}

// Process filters a buffer in place.
func (b *Biquad) Process(buf []float32) {
	for i, x := range buf {
		buf[i] = b.ProcessSample(x)
	}
}

// Reset clears z1/z2.
func (b *Biquad) Reset() {
	b.z1 = 0
	b.z2 = 0
}
