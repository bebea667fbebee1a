// ABOUTME: Fixed 8-band stereo parametric equalizer
// ABOUTME: Peaking biquads in series per channel at fixed center frequencies
package dsp

// BandCount is the number of equalizer bands.
const BandCount = 8

// BandFrequencies are the fixed peaking-filter centers in Hz.
var BandFrequencies = [BandCount]float64{60, 120, 250, 500, 1000, 2000, 4000, 8000}

const (
	eqQ = 1.0

	// MaxBandGainDB bounds per-band boost/cut.
	MaxBandGainDB = 12.0
)

// Equalizer applies BandCount peaking filters in series to each channel
// independently. Gain changes recompute coefficients without touching
// filter state, so adjustments are click-free. Owned by the consumer
// thread; no locking.
type Equalizer struct {
	sampleRate int
	channels   int
	gains      [BandCount]float64
	// bands[band][channel]
	bands [BandCount][]*Biquad
}

// NewEqualizer creates a flat equalizer.
func NewEqualizer(sampleRate, channels int) *Equalizer {
	eq := &Equalizer{
		sampleRate: sampleRate,
		channels:   channels,
	}
	for band := range eq.bands {
		eq.bands[band] = make([]*Biquad, channels)
		for ch := 0; ch < channels; ch++ {
			eq.bands[band][ch] = NewBiquad()
		}
		eq.applyBand(band)
	}
	return eq
}

// SetBandGain sets one band's gain in dB, clamped to ±MaxBandGainDB.
func (eq *Equalizer) SetBandGain(band int, gainDB float64) {
	if band < 0 || band >= BandCount {
		return
	}
	if gainDB > MaxBandGainDB {
		gainDB = MaxBandGainDB
	} else if gainDB < -MaxBandGainDB {
		gainDB = -MaxBandGainDB
	}
	eq.gains[band] = gainDB
	eq.applyBand(band)
}

// SetGains sets all band gains at once.
func (eq *Equalizer) SetGains(gains [BandCount]float64) {
	for band, g := range gains {
		eq.SetBandGain(band, g)
	}
}

// BandGain returns one band's current gain in dB.
func (eq *Equalizer) BandGain(band int) float64 {
	if band < 0 || band >= BandCount {
		return 0
	}
	return eq.gains[band]
}

func (eq *Equalizer) applyBand(band int) {
	for ch := 0; ch < eq.channels; ch++ {
		eq.bands[band][ch].SetPeaking(float64(eq.sampleRate), BandFrequencies[band], eqQ, eq.gains[band])
	}
}

// Process filters interleaved audio in place.
func (eq *Equalizer) Process(samples []float32, frames int) {
	for i := 0; i < frames; i++ {
		base := i * eq.channels
		for ch := 0; ch < eq.channels; ch++ {
			s := samples[base+ch]
			for band := 0; band < BandCount; band++ {
				s = eq.bands[band][ch].ProcessSample(s)
			}
			samples[base+ch] = s
		}
	}
}

// Reset clears all filter state but keeps gains.
func (eq *Equalizer) Reset() {
	for band := range eq.bands {
		for _, f := range eq.bands[band] {
			f.Reset()
		}
	}
}
