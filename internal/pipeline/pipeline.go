// ABOUTME: Pipeline orchestrator wiring DSP stages into the audio callbacks
// ABOUTME: Producer resamples into the ring; consumer reads, processes, meters
package pipeline

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"github.com/loopmon/loopmon-go/internal/analyzer"
	"github.com/loopmon/loopmon-go/internal/audio"
	"github.com/loopmon/loopmon-go/internal/buffer"
	"github.com/loopmon/loopmon-go/internal/dsp"
	"github.com/loopmon/loopmon-go/internal/resample"
	"github.com/loopmon/loopmon-go/internal/separation"
)

// DefaultMaxBlockFrames bounds the per-callback frame count either
// hardware callback may deliver. Scratch buffers are sized from it once.
const DefaultMaxBlockFrames = 4096

// Config describes one pipeline run.
type Config struct {
	Format    audio.Format
	LatencyMs int

	DriftHysteresis int // frames, 0 = default
	DriftCorrection int // frames, 0 = default
	EmergencyMult   int // ring emergency drain threshold, in targets, 0 = default

	SeparationAddr string
	VizRefreshHz   int
	MaxBlockFrames int
}

// Stats aggregates run diagnostics for the non-real-time stats loop.
type Stats struct {
	Ring           buffer.Stats
	Separation     separation.Stats
	PeakDB         float64
	RMSDB          float64
	Resampling     bool
	DriftRatio     float64
	ProducedBlocks int64
	ConsumedBlocks int64
}

// Pipeline owns the fixed signal path between the capture and render
// callbacks. The producer thread owns the resampler and drift
// controller; the consumer thread owns karaoke, compressor, equalizer,
// and analyzer. The ring buffer is the only state they share.
type Pipeline struct {
	cfg    Config
	format audio.Format

	ring      *buffer.Ring
	resampler *resample.Resampler
	drift     *resample.DriftController

	karaoke  *dsp.Karaoke
	comp     *dsp.Compressor
	eq       *dsp.Equalizer
	analyzer *analyzer.Analyzer

	sepClient *separation.Client
	sepStage  *separation.Stage

	params         *paramStore
	appliedVersion uint64 // consumer-thread only

	running atomic.Bool

	// Producer scratch, sized once at construction.
	inScratch []float32
	planar    [][]float32
	resampled []float32

	// Metering published from the consumer thread.
	peakBits atomic.Uint64
	rmsBits  atomic.Uint64

	producedBlocks atomic.Int64
	consumedBlocks atomic.Int64
	driftRatioBits atomic.Uint64
}

// New validates the negotiated format and builds a stopped pipeline.
// A format the pipeline cannot run is fatal here; there is no partial
// start.
func New(cfg Config) (*Pipeline, error) {
	f := cfg.Format
	if f.SampleRateIn <= 0 || f.SampleRateOut <= 0 {
		return nil, fmt.Errorf("invalid sample rates: in=%d out=%d", f.SampleRateIn, f.SampleRateOut)
	}
	if f.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if cfg.LatencyMs <= 0 {
		return nil, fmt.Errorf("invalid target latency: %dms", cfg.LatencyMs)
	}
	maxBlock := cfg.MaxBlockFrames
	if maxBlock <= 0 {
		maxBlock = DefaultMaxBlockFrames
	}

	p := &Pipeline{
		cfg:    cfg,
		format: f,
		ring: buffer.NewRing(buffer.Config{
			Channels:      f.Channels,
			SampleRate:    f.SampleRateOut,
			LatencyMs:     cfg.LatencyMs,
			EmergencyMult: cfg.EmergencyMult,
		}),
		resampler: resample.NewResampler(f.SampleRateIn, f.SampleRateOut, f.Channels),
		drift:     resample.NewDriftController(cfg.DriftHysteresis, cfg.DriftCorrection),
		karaoke:   dsp.NewKaraoke(f.SampleRateOut),
		comp:      dsp.NewCompressor(f.SampleRateOut, f.Channels),
		eq:        dsp.NewEqualizer(f.SampleRateOut, f.Channels),
		analyzer:  analyzer.NewAnalyzer(f.SampleRateOut, f.Channels, cfg.VizRefreshHz),
		params: newParamStore(Params{
			Volume:       1.0,
			Compressor:   dsp.CompressorParams{ThresholdDB: -20, Ratio: 4, AttackMs: 10, ReleaseMs: 100},
			DriftEnabled: true,
		}),
		inScratch: make([]float32, maxBlock*f.Channels),
	}
	p.resampled = make([]float32, p.resampler.MaxOutputFrames(maxBlock)*f.Channels)
	p.planar = make([][]float32, f.Channels)

	p.sepClient = separation.NewClient(cfg.SeparationAddr, f.SampleRateOut, f.Channels)
	p.sepStage = separation.NewStage(p.sepClient, f.SampleRateOut, f.Channels, maxBlock)
	p.driftRatioBits.Store(math.Float64bits(1.0))

	if f.NeedsResampling() {
		log.Printf("Rate mismatch %d -> %d Hz: resampler active", f.SampleRateIn, f.SampleRateOut)
	}

	return p, nil
}

// Format returns the negotiated format for this run.
func (p *Pipeline) Format() audio.Format {
	return p.format
}

// ResamplingActive reports whether the input stream is being rate
// converted, either for a nominal rate mismatch or drift correction.
func (p *Pipeline) ResamplingActive() bool {
	return p.format.NeedsResampling() || p.params.load().DriftEnabled
}

// Frames returns the analyzer's visualization channel.
func (p *Pipeline) Frames() <-chan analyzer.Frame {
	return p.analyzer.Frames()
}

// Start resets all persistent stage state and opens the pipeline for
// callbacks. The separation service link starts in the background.
func (p *Pipeline) Start() error {
	if p.running.Load() {
		return fmt.Errorf("pipeline already running")
	}
	p.reset()
	p.sepClient.Start()
	p.running.Store(true)
	log.Printf("Pipeline started: %dch, %d -> %d Hz, target %d frames",
		p.format.Channels, p.format.SampleRateIn, p.format.SampleRateOut, p.ring.TargetFrames())
	return nil
}

// Stop closes the pipeline. Callers tear down their hardware units
// before calling Stop; callbacks arriving afterwards are ignored.
func (p *Pipeline) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.sepClient.Close()
	log.Printf("Pipeline stopped")
}

// reset clears every component that carries state across callbacks.
func (p *Pipeline) reset() {
	p.ring.Reset()
	p.resampler.Reset()
	p.drift.Reset()
	p.karaoke.Reset()
	p.comp.Reset()
	p.eq.Reset()
	p.analyzer.Reset()
	p.sepStage.Reset()
	p.sepClient.Reset()
	p.appliedVersion = 0
}

// ProcessInput is the producer (capture) callback for interleaved
// input. It normalizes, rate-corrects, and writes into the ring buffer.
// No allocation, no unbounded waiting.
func (p *Pipeline) ProcessInput(samples []float32, frames int) {
	if !p.running.Load() || frames <= 0 {
		return
	}

	// Oversized hardware blocks are processed in bounded slices.
	maxBlock := len(p.inScratch) / p.format.Channels
	for frames > maxBlock {
		p.ProcessInput(samples[:maxBlock*p.format.Channels], maxBlock)
		samples = samples[maxBlock*p.format.Channels:]
		frames -= maxBlock
	}

	params := p.params.load()

	if p.format.NeedsResampling() || params.DriftEnabled {
		ratio := 1.0
		if params.DriftEnabled {
			ratio = p.drift.CalculateRatio(p.ring.Available(), p.ring.TargetFrames())
		}
		p.driftRatioBits.Store(math.Float64bits(ratio))
		n := p.resampler.Process(samples, frames, p.resampled, ratio)
		p.ring.Write(p.resampled, n)
	} else {
		p.ring.Write(samples, frames)
	}
	p.producedBlocks.Add(1)
}

// ProcessInputPlanar is the producer callback for non-interleaved
// input: planes are interleaved into scratch, then handled normally.
func (p *Pipeline) ProcessInputPlanar(planes [][]float32, frames int) {
	if !p.running.Load() || frames <= 0 || len(planes) != p.format.Channels {
		return
	}
	maxBlock := len(p.inScratch) / p.format.Channels
	offset := 0
	for frames > 0 {
		n := frames
		if n > maxBlock {
			n = maxBlock
		}
		for ch := range planes {
			p.planar[ch] = planes[ch][offset : offset+n]
		}
		audio.Interleave(p.inScratch, p.planar, n)
		p.ProcessInput(p.inScratch[:n*p.format.Channels], n)
		offset += n
		frames -= n
	}
}

// ProcessOutput is the consumer (render) callback. It always fills out
// with exactly frames frames: buffered audio when available, the ring's
// fade policy otherwise. Processing happens in place on the way out.
func (p *Pipeline) ProcessOutput(out []float32, frames int) {
	if frames <= 0 {
		return
	}
	if !p.running.Load() {
		clear(out[:frames*p.format.Channels])
		return
	}

	params := p.params.load()
	if params.Version != p.appliedVersion {
		p.applyParams(params)
	}

	p.ring.Read(out, frames)

	if params.KaraokeEnabled {
		switch params.KaraokeMode {
		case KaraokeLocal:
			p.karaoke.Process(out, frames, p.format.Channels)
		case KaraokeModel:
			p.sepStage.Process(out, frames)
		}
	}
	if params.CompressorEnabled {
		p.comp.Process(out, frames)
	}
	if params.EQEnabled {
		p.eq.Process(out, frames)
	}

	// Analysis taps the processed signal before volume so the meters
	// track program material, not the volume knob.
	p.analyzer.Process(out, frames)

	audio.ApplyVolume(out[:frames*p.format.Channels], params.Volume)

	peak, rms := audio.PeakRMS(out[:frames*p.format.Channels])
	p.peakBits.Store(math.Float64bits(peak))
	p.rmsBits.Store(math.Float64bits(rms))
	p.consumedBlocks.Add(1)
}

// applyParams pushes a new snapshot into the consumer-owned components.
// Runs on the consumer thread at callback entry.
func (p *Pipeline) applyParams(params *Params) {
	p.comp.SetParameters(params.Compressor)
	p.eq.SetGains(params.EQGains)
	p.karaoke.SetIntensity(params.KaraokeIntensity)
	p.sepStage.SetIntensity(params.KaraokeIntensity)
	p.appliedVersion = params.Version
}

// SetVolume sets the output volume (linear, 1.0 = unity).
func (p *Pipeline) SetVolume(volume float32) {
	if volume < 0 {
		volume = 0
	}
	p.params.publish(func(pr *Params) { pr.Volume = volume })
}

// SetCompressor publishes new compressor settings.
func (p *Pipeline) SetCompressor(enabled bool, cp dsp.CompressorParams) {
	p.params.publish(func(pr *Params) {
		pr.CompressorEnabled = enabled
		pr.Compressor = cp
	})
}

// SetEQ publishes equalizer enablement and per-band gains.
func (p *Pipeline) SetEQ(enabled bool, gains [dsp.BandCount]float64) {
	p.params.publish(func(pr *Params) {
		pr.EQEnabled = enabled
		pr.EQGains = gains
	})
}

// SetEQBand publishes a single band gain change.
func (p *Pipeline) SetEQBand(band int, gainDB float64) {
	if band < 0 || band >= dsp.BandCount {
		return
	}
	p.params.publish(func(pr *Params) { pr.EQGains[band] = gainDB })
}

// SetKaraoke publishes vocal-suppression settings.
func (p *Pipeline) SetKaraoke(enabled bool, mode KaraokeMode, intensity float32) {
	p.params.publish(func(pr *Params) {
		pr.KaraokeEnabled = enabled
		pr.KaraokeMode = mode
		pr.KaraokeIntensity = intensity
	})
}

// SetDriftCorrection publishes drift correction enablement.
func (p *Pipeline) SetDriftCorrection(enabled bool) {
	p.params.publish(func(pr *Params) { pr.DriftEnabled = enabled })
}

// Params returns the current settings snapshot.
func (p *Pipeline) Params() Params {
	return *p.params.load()
}

// GetStats returns a diagnostics snapshot for the stats loop.
func (p *Pipeline) GetStats() Stats {
	return Stats{
		Ring:           p.ring.Stats(),
		Separation:     p.sepClient.GetStats(),
		PeakDB:         audio.LinearToDB(math.Float64frombits(p.peakBits.Load())),
		RMSDB:          audio.LinearToDB(math.Float64frombits(p.rmsBits.Load())),
		Resampling:     p.ResamplingActive(),
		DriftRatio:     math.Float64frombits(p.driftRatioBits.Load()),
		ProducedBlocks: p.producedBlocks.Load(),
		ConsumedBlocks: p.consumedBlocks.Load(),
	}
}
