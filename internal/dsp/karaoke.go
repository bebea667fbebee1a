// ABOUTME: Local 3-band mid/side vocal suppressor
// ABOUTME: Splits bass/vocal/air bands and attenuates center content
package dsp

import "math"

// Band split points. Content below the bass cutoff is passed untouched
// to keep kick and bassline intact; content above the air cutoff keeps
// its cymbal and transient sparkle with only light side attenuation.
const (
	bassCutoffHz = 120.0
	airCutoffHz  = 5000.0

	// Side attenuation fractions relative to intensity. Side content is
	// never fully cancelled so reverb tails and panned effects keep some
	// spatial character.
	vocalSideFactor = 0.4
	airSideFactor   = 0.15
)

// Karaoke suppresses centered vocal content in a stereo signal. The
// vocal band mid channel is attenuated by the configured intensity while
// side content is reduced less aggressively; bass passes through. Owned
// by the consumer thread; no locking.
type Karaoke struct {
	intensity float32

	lowCoeff  float32
	highCoeff float32

	// One-pole filter state per channel (0=L, 1=R).
	lowState  [2]float32
	highState [2]float32
}

// NewKaraoke creates a suppressor for the given output sample rate.
func NewKaraoke(sampleRate int) *Karaoke {
	return &Karaoke{
		lowCoeff:  onePoleCoeff(bassCutoffHz, sampleRate),
		highCoeff: onePoleCoeff(airCutoffHz, sampleRate),
	}
}

// onePoleCoeff returns the smoothing coefficient for a one-pole filter
// at the given cutoff.
func onePoleCoeff(cutoffHz float64, sampleRate int) float32 {
	return float32(1.0 - math.Exp(-2.0*math.Pi*cutoffHz/float64(sampleRate)))
}

// SetIntensity sets suppression strength in [0,1]; 1.0 removes the
// vocal-band mid channel entirely.
func (k *Karaoke) SetIntensity(intensity float32) {
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}
	k.intensity = intensity
}

// Intensity returns the current suppression strength.
func (k *Karaoke) Intensity() float32 {
	return k.intensity
}

// Process suppresses vocals in interleaved stereo audio in place.
// Non-stereo audio passes through: mid/side needs two channels.
func (k *Karaoke) Process(samples []float32, frames, channels int) {
	if channels != 2 || k.intensity == 0 {
		return
	}

	midGain := 1 - k.intensity
	vocalSideGain := 1 - vocalSideFactor*k.intensity
	airSideGain := 1 - airSideFactor*k.intensity

	for i := 0; i < frames; i++ {
		left := samples[i*2]
		right := samples[i*2+1]

		// Bass band via one-pole low-pass, preserved untouched.
		k.lowState[0] = flushDenormal(k.lowState[0] + k.lowCoeff*(left-k.lowState[0]))
		k.lowState[1] = flushDenormal(k.lowState[1] + k.lowCoeff*(right-k.lowState[1]))
		bassL := k.lowState[0]
		bassR := k.lowState[1]

		// Air band: everything the 5 kHz one-pole low-pass rejects.
		k.highState[0] = flushDenormal(k.highState[0] + k.highCoeff*(left-k.highState[0]))
		k.highState[1] = flushDenormal(k.highState[1] + k.highCoeff*(right-k.highState[1]))
		airL := left - k.highState[0]
		airR := right - k.highState[1]

		vocalL := left - bassL - airL
		vocalR := right - bassR - airR

		vocalMid := (vocalL + vocalR) * 0.5 * midGain
		vocalSide := (vocalL - vocalR) * 0.5 * vocalSideGain
		airMid := (airL + airR) * 0.5
		airSide := (airL - airR) * 0.5 * airSideGain

		samples[i*2] = bassL + vocalMid + vocalSide + airMid + airSide
		samples[i*2+1] = bassR + vocalMid - vocalSide + airMid - airSide
	}
}

// Reset clears the band-split filter state.
func (k *Karaoke) Reset() {
	k.lowState = [2]float32{}
	k.highState = [2]float32{}
}
