// ABOUTME: Spectrum and waveform analyzer feeding the visualization layer
// ABOUTME: Hann-windowed FFT binned into 16 log-spaced bands with peak-hold decay
package analyzer

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	fftSize = 1024

	// NumBands is the number of perceptual display bands.
	NumBands = 16
	// WaveformLen is the fixed length of the waveform snapshot.
	WaveformLen = 512

	// Band span in Hz, perceptually log-spaced.
	bandLowHz  = 32.0
	bandHighHz = 16000.0

	// Display dB range normalized to 0..1.
	floorDB   = -20.0
	ceilingDB = 40.0

	// decayFactor gives the bar meters their fast-attack/slow-release
	// fall; applied per analysis frame.
	decayFactor = 0.85

	// DefaultRefreshHz caps how often frames reach the visualization
	// sink, independent of the audio callback rate.
	DefaultRefreshHz = 20
)

// Frame is one visualization update: normalized band magnitudes and a
// mono waveform snapshot. Fixed-size arrays so a frame is a plain copy.
type Frame struct {
	Bands    [NumBands]float32
	Waveform [WaveformLen]float32
}

// Analyzer windows and transforms the rendered output stream into
// visualization frames. It runs on the consumer thread but publishes
// asynchronously: a dropped frame never blocks audio. All scratch is
// sized at construction; the hot path does not allocate.
type Analyzer struct {
	sampleRate int
	channels   int

	window    []float64 // Hann coefficients
	mono      []float32 // accumulation buffer, fftSize frames
	fill      int
	seq       []float64    // windowed FFT input scratch
	coeffs    []complex128 // FFT output scratch
	fft       *fourier.FFT
	bandEdges [NumBands + 1]int

	decay [NumBands]float32

	frames      chan Frame
	minInterval time.Duration
	lastPublish time.Time
}

// NewAnalyzer creates an analyzer for the output stream format.
func NewAnalyzer(sampleRate, channels, refreshHz int) *Analyzer {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshHz
	}
	a := &Analyzer{
		sampleRate:  sampleRate,
		channels:    channels,
		window:      make([]float64, fftSize),
		mono:        make([]float32, fftSize),
		seq:         make([]float64, fftSize),
		coeffs:      make([]complex128, fftSize/2+1),
		fft:         fourier.NewFFT(fftSize),
		frames:      make(chan Frame, 4),
		minInterval: time.Second / time.Duration(refreshHz),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(fftSize-1)))
	}
	a.computeBandEdges()
	return a
}

// computeBandEdges maps log-spaced band boundaries onto FFT bins.
func (a *Analyzer) computeBandEdges() {
	ratio := bandHighHz / bandLowHz
	binHz := float64(a.sampleRate) / fftSize
	for k := 0; k <= NumBands; k++ {
		freq := bandLowHz * math.Pow(ratio, float64(k)/NumBands)
		bin := int(freq / binHz)
		if bin < 1 {
			bin = 1
		}
		if bin > fftSize/2 {
			bin = fftSize / 2
		}
		a.bandEdges[k] = bin
	}
	// Guarantee at least one bin per band even at low sample rates.
	for k := 1; k <= NumBands; k++ {
		if a.bandEdges[k] <= a.bandEdges[k-1] {
			a.bandEdges[k] = a.bandEdges[k-1] + 1
		}
	}
}

// Frames returns the channel visualization consumers receive on.
func (a *Analyzer) Frames() <-chan Frame {
	return a.frames
}

// Process accumulates interleaved output audio. It never mutates the
// signal. When a full analysis window is ready it is transformed and,
// subject to the refresh cap, published.
func (a *Analyzer) Process(samples []float32, frames int) {
	for i := 0; i < frames; i++ {
		base := i * a.channels
		var sum float32
		for ch := 0; ch < a.channels; ch++ {
			sum += samples[base+ch]
		}
		a.mono[a.fill] = sum / float32(a.channels)
		a.fill++
		if a.fill == fftSize {
			a.analyze()
			a.fill = 0
		}
	}
}

// analyze transforms the accumulated window and updates the band meters.
func (a *Analyzer) analyze() {
	for i := 0; i < fftSize; i++ {
		a.seq[i] = float64(a.mono[i]) * a.window[i]
	}
	a.fft.Coefficients(a.coeffs, a.seq)

	for band := 0; band < NumBands; band++ {
		lo, hi := a.bandEdges[band], a.bandEdges[band+1]
		var peak float64
		for bin := lo; bin < hi; bin++ {
			c := a.coeffs[bin]
			mag := math.Hypot(real(c), imag(c)) / (fftSize / 2)
			if mag > peak {
				peak = mag
			}
		}

		db := floorDB
		if peak > 0 {
			db = 20.0 * math.Log10(peak)
		}
		norm := (db - floorDB) / (ceilingDB - floorDB)
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}

		// Fast attack, slow release: new peaks land instantly, old ones
		// fall by the decay factor per frame.
		decayed := a.decay[band] * decayFactor
		if float32(norm) > decayed {
			a.decay[band] = float32(norm)
		} else {
			a.decay[band] = decayed
		}
	}

	a.publish()
}

// publish pushes a frame to the sink, rate-limited and non-blocking.
func (a *Analyzer) publish() {
	now := time.Now()
	if now.Sub(a.lastPublish) < a.minInterval {
		return
	}
	a.lastPublish = now

	var f Frame
	f.Bands = a.decay
	copy(f.Waveform[:], a.mono[:WaveformLen])

	select {
	case a.frames <- f:
	default:
		// Sink is behind; drop the frame rather than wait.
	}
}

// Bands returns the current decayed band values.
func (a *Analyzer) Bands() [NumBands]float32 {
	return a.decay
}

// Reset clears accumulation and meter state for a fresh run.
func (a *Analyzer) Reset() {
	a.fill = 0
	a.decay = [NumBands]float32{}
	a.lastPublish = time.Time{}
}
