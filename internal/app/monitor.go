// ABOUTME: Main monitor application orchestration
// ABOUTME: Coordinates capture, pipeline, output, viz, and UI
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loopmon/loopmon-go/internal/analyzer"
	"github.com/loopmon/loopmon-go/internal/audio"
	"github.com/loopmon/loopmon-go/internal/config"
	"github.com/loopmon/loopmon-go/internal/dsp"
	"github.com/loopmon/loopmon-go/internal/pipeline"
	"github.com/loopmon/loopmon-go/internal/player"
	"github.com/loopmon/loopmon-go/internal/source"
	"github.com/loopmon/loopmon-go/internal/ui"
	"github.com/loopmon/loopmon-go/internal/viz"
)

// captureBlockMs is the cadence of the capture loop.
const captureBlockMs = 10

// statsInterval is the cadence of TUI and log status updates.
const statsInterval = 250 * time.Millisecond

// Config holds monitor configuration
type Config struct {
	Settings config.Config
	Source   source.CaptureSource
	UseTUI   bool
	VizOff   bool
}

// Monitor represents the main monitoring application
type Monitor struct {
	config  Config
	pipe    *pipeline.Pipeline
	output  *player.Output
	vizSrv  *viz.Server
	tuiProg *tea.Program
	ctrl    *ui.Controls
	ctx     context.Context
	cancel  context.CancelFunc

	bandsMu   sync.Mutex
	lastBands [analyzer.NumBands]float32

	volume float32
	muted  bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new monitor
func New(cfg Config) (*Monitor, error) {
	ctx, cancel := context.WithCancel(context.Background())

	settings := cfg.Settings
	pipeCfg := pipeline.Config{
		Format: audio.Format{
			SampleRateIn:  cfg.Source.SampleRate(),
			SampleRateOut: settings.OutputSampleRate,
			Channels:      cfg.Source.Channels(),
		},
		LatencyMs:       settings.LatencyMs,
		DriftHysteresis: settings.Drift.HysteresisFrames,
		DriftCorrection: settings.Drift.CorrectionFrames,
		EmergencyMult:   settings.Drift.EmergencyMult,
		SeparationAddr:  settings.SeparationAddr,
		VizRefreshHz:    settings.VizRefreshHz,
	}

	pipe, err := pipeline.New(pipeCfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	m := &Monitor{
		config: cfg,
		pipe:   pipe,
		output: player.NewOutput(),
		ctx:    ctx,
		cancel: cancel,
		volume: float32(settings.Volume),
	}

	if !cfg.VizOff && settings.VizPort > 0 {
		m.vizSrv = viz.NewServer(settings.VizPort)
	}

	m.applySettings(settings)
	return m, nil
}

// applySettings pushes the static configuration into the pipeline.
func (m *Monitor) applySettings(settings config.Config) {
	m.pipe.SetVolume(float32(settings.Volume))
	m.pipe.SetDriftCorrection(settings.Drift.Enabled)

	m.pipe.SetCompressor(settings.Compressor.Enabled, dsp.CompressorParams{
		ThresholdDB:  settings.Compressor.ThresholdDB,
		Ratio:        settings.Compressor.Ratio,
		AttackMs:     settings.Compressor.AttackMs,
		ReleaseMs:    settings.Compressor.ReleaseMs,
		MakeupGainDB: settings.Compressor.MakeupGainDB,
	})

	var gains [dsp.BandCount]float64
	eqEnabled := false
	for i := 0; i < dsp.BandCount && i < len(settings.EQGains); i++ {
		gains[i] = settings.EQGains[i]
		if gains[i] != 0 {
			eqEnabled = true
		}
	}
	m.pipe.SetEQ(eqEnabled, gains)

	mode := pipeline.KaraokeLocal
	if settings.Karaoke.Mode == "model" {
		mode = pipeline.KaraokeModel
	}
	m.pipe.SetKaraoke(settings.Karaoke.Enabled, mode, float32(settings.Karaoke.Intensity))
}

// Start starts the monitor and blocks until it stops.
func (m *Monitor) Start() error {
	if m.config.UseTUI {
		m.ctrl = ui.NewControls()
		tuiProg, err := ui.Run(m.ctrl)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		m.tuiProg = tuiProg
		go func() {
			m.tuiProg.Run()
			m.cancel()
		}()
	}

	if m.vizSrv != nil {
		if err := m.vizSrv.Start(); err != nil {
			log.Printf("Viz server disabled: %v", err)
			m.vizSrv = nil
		}
	}

	if err := m.pipe.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	format := m.pipe.Format()
	if err := m.output.Initialize(format.SampleRateOut, format.Channels, m.pipe.ProcessOutput); err != nil {
		return fmt.Errorf("initialize output: %w", err)
	}

	m.wg.Add(3)
	go m.captureLoop()
	go m.frameLoop()
	go m.statsLoop()

	if m.ctrl != nil {
		m.wg.Add(1)
		go m.controlLoop()
	}

	<-m.ctx.Done()
	return nil
}

// Stop shuts down all components. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		if m.tuiProg != nil {
			m.tuiProg.Quit()
		}

		m.output.Close()
		m.pipe.Stop()
		if m.vizSrv != nil {
			m.vizSrv.Stop()
		}
		m.config.Source.Close()

		m.wg.Wait()
		log.Printf("Monitor stopped")
	})
}

// captureLoop pulls fixed blocks from the source at wall-clock pace.
func (m *Monitor) captureLoop() {
	defer m.wg.Done()

	src := m.config.Source
	blockFrames := src.SampleRate() * captureBlockMs / 1000
	block := make([]float32, blockFrames*src.Channels())

	ticker := time.NewTicker(captureBlockMs * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			frames, err := src.Read(block)
			if frames > 0 {
				m.pipe.ProcessInput(block[:frames*src.Channels()], frames)
			}
			if err != nil {
				if err == io.EOF {
					log.Printf("Capture source exhausted")
				} else {
					log.Printf("Capture error: %v", err)
				}
				return
			}
		}
	}
}

// frameLoop forwards analyzer frames to the viz server and caches the
// latest band levels for the TUI.
func (m *Monitor) frameLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case frame, ok := <-m.pipe.Frames():
			if !ok {
				return
			}

			m.bandsMu.Lock()
			m.lastBands = frame.Bands
			m.bandsMu.Unlock()

			if m.vizSrv == nil || m.vizSrv.ClientCount() == 0 {
				continue
			}

			stats := m.pipe.GetStats()
			m.vizSrv.Publish(viz.Frame{
				Bands:    frame.Bands[:],
				Waveform: frame.Waveform[:],
				PeakDB:   stats.PeakDB,
				RMSDB:    stats.RMSDB,
				Underrun: stats.Ring.Underruns > 0,
			})
		}
	}
}

// statsLoop feeds the TUI and, without one, logs a periodic summary.
func (m *Monitor) statsLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	logEvery := 20 // with a 250ms tick, one log line per 5s
	tick := 0

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			stats := m.pipe.GetStats()
			format := m.pipe.Format()

			if m.tuiProg != nil {
				m.bandsMu.Lock()
				bands := m.lastBands
				m.bandsMu.Unlock()

				m.tuiProg.Send(ui.StatusMsg{
					InputRate:        format.SampleRateIn,
					OutputRate:       format.SampleRateOut,
					Channels:         format.Channels,
					Bands:            bands,
					PeakDB:           stats.PeakDB,
					RMSDB:            stats.RMSDB,
					Available:        stats.Ring.Available,
					Target:           stats.Ring.Target,
					Underruns:        uint64(stats.Ring.Underruns),
					Overruns:         uint64(stats.Ring.OverrunFrames),
					DriftRatio:       stats.DriftRatio,
					Resampling:       stats.Resampling,
					SeparationOnline: stats.Separation.Connected,
				})
				continue
			}

			tick++
			if tick%logEvery == 0 {
				log.Printf("Stats: buffer %d/%d, underruns %d, peak %.1f dB, drift %.5f",
					stats.Ring.Available, stats.Ring.Target,
					stats.Ring.Underruns, stats.PeakDB, stats.DriftRatio)
			}
		}
	}
}

// controlLoop applies TUI setting changes to the pipeline.
func (m *Monitor) controlLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.ctrl.Quit:
			m.cancel()
			return
		case msg := <-m.ctrl.Changes:
			m.applyControl(msg)
		}
	}
}

func (m *Monitor) applyControl(msg ui.ControlMsg) {
	if msg.Volume != nil {
		m.volume = float32(*msg.Volume) / 100.0
		if !m.muted {
			m.pipe.SetVolume(m.volume)
		}
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
		if m.muted {
			m.pipe.SetVolume(0)
		} else {
			m.pipe.SetVolume(m.volume)
		}
	}

	params := m.pipe.Params()
	if msg.KaraokeEnabled != nil {
		m.pipe.SetKaraoke(*msg.KaraokeEnabled, params.KaraokeMode, params.KaraokeIntensity)
	}
	if msg.KaraokeModel != nil {
		mode := pipeline.KaraokeLocal
		if *msg.KaraokeModel {
			mode = pipeline.KaraokeModel
		}
		m.pipe.SetKaraoke(params.KaraokeEnabled, mode, params.KaraokeIntensity)
	}
	if msg.CompressorEnabled != nil {
		m.pipe.SetCompressor(*msg.CompressorEnabled, params.Compressor)
	}
}
