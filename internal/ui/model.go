// ABOUTME: Bubbletea model for the monitoring TUI
// ABOUTME: Renders spectrum, level meters, buffer health, and DSP state
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// spectrumGlyphs maps a normalized band level to a block character.
var spectrumGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// Model represents the TUI state
type Model struct {
	// Stream format
	inputRate  int
	outputRate int
	channels   int

	// Levels
	bands  [16]float32
	peakDB float64
	rmsDB  float64

	// Buffer health
	available int
	target    int
	underruns uint64
	overruns  uint64

	// Drift
	driftRatio float64
	resampling bool

	// DSP state
	volume     int
	muted      bool
	compressor bool
	karaoke    bool
	karaokeMdl bool
	sepOnline  bool

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderSpectrum()
	s += m.renderMeters()
	s += m.renderState()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the stream format line
func (m Model) renderHeader() string {
	resample := ""
	if m.resampling {
		resample = fmt.Sprintf(" → %dHz", m.outputRate)
	}

	return fmt.Sprintf(`┌─ Loopmon ────────────────────────────────────────────┐
│ Input: %dHz %s%s%-24s │
├──────────────────────────────────────────────────────┤
`, m.inputRate, channelName(m.channels), resample, "")
}

// renderSpectrum renders the 16-band analyzer as block glyphs
func (m Model) renderSpectrum() string {
	bars := ""
	for _, b := range m.bands {
		level := int(b * float32(len(spectrumGlyphs)-1))
		if level < 0 {
			level = 0
		}
		if level >= len(spectrumGlyphs) {
			level = len(spectrumGlyphs) - 1
		}
		bars += string(spectrumGlyphs[level]) + string(spectrumGlyphs[level]) + " "
	}

	return fmt.Sprintf("│ Spectrum: %-42s │\n", bars)
}

// renderMeters renders peak and RMS meters
func (m Model) renderMeters() string {
	peakBar := renderLevelBar(m.peakDB, 20)
	rmsBar := renderLevelBar(m.rmsDB, 20)

	return fmt.Sprintf("│ Peak: [%s] %6.1f dB%-10s │\n"+
		"│ RMS:  [%s] %6.1f dB%-10s │\n",
		peakBar, m.peakDB, "",
		rmsBar, m.rmsDB, "")
}

// renderState renders buffer and DSP status
func (m Model) renderState() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	karaoke := "off"
	if m.karaoke {
		karaoke = "local"
		if m.karaokeMdl {
			karaoke = "model"
			if !m.sepOnline {
				karaoke = "model (offline)"
			}
		}
	}

	comp := "off"
	if m.compressor {
		comp = "on"
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Volume: [%s] %d%%%s%-14s │
│ Buffer: %d/%d frames  underruns: %d  overruns: %d%-4s │
│ Karaoke: %-10s Compressor: %-3s Drift: %.5f%-2s │
`, renderBar(m.volume, 100, 10), m.volume, muteIcon, "",
		m.available, m.target, m.underruns, m.overruns, "",
		karaoke, comp, m.driftRatio, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume m:Mute k:Karaoke v:Mode c:Comp d:Dbg q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders extra drift detail
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Drift ratio: %.6f                              │
│   Resampling active: %v%-27s │
`, m.driftRatio, m.resampling, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.sendControl(ControlMsg{Volume: intPtr(m.volume)})
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.sendControl(ControlMsg{Volume: intPtr(m.volume)})
	case "m":
		m.muted = !m.muted
		m.sendControl(ControlMsg{Muted: boolPtr(m.muted)})
	case "k":
		m.karaoke = !m.karaoke
		m.sendControl(ControlMsg{KaraokeEnabled: boolPtr(m.karaoke)})
	case "v":
		m.karaokeMdl = !m.karaokeMdl
		m.sendControl(ControlMsg{KaraokeModel: boolPtr(m.karaokeMdl)})
	case "c":
		m.compressor = !m.compressor
		m.sendControl(ControlMsg{CompressorEnabled: boolPtr(m.compressor)})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendControl(msg ControlMsg) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Changes <- msg:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.InputRate != 0 {
		m.inputRate = msg.InputRate
		m.outputRate = msg.OutputRate
		m.channels = msg.Channels
	}
	m.bands = msg.Bands
	m.peakDB = msg.PeakDB
	m.rmsDB = msg.RMSDB
	m.available = msg.Available
	m.target = msg.Target
	m.underruns = msg.Underruns
	m.overruns = msg.Overruns
	m.driftRatio = msg.DriftRatio
	m.resampling = msg.Resampling
	m.sepOnline = msg.SeparationOnline
}

// StatusMsg updates TUI state
type StatusMsg struct {
	InputRate        int
	OutputRate       int
	Channels         int
	Bands            [16]float32
	PeakDB           float64
	RMSDB            float64
	Available        int
	Target           int
	Underruns        uint64
	Overruns         uint64
	DriftRatio       float64
	Resampling       bool
	SeparationOnline bool
}

// ControlMsg carries a user-initiated setting change
type ControlMsg struct {
	Volume            *int
	Muted             *bool
	KaraokeEnabled    *bool
	KaraokeModel      *bool
	CompressorEnabled *bool
}

// QuitMsg signals the user quit the TUI
type QuitMsg struct{}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

// renderLevelBar maps dBFS in [-60, 0] onto a meter
func renderLevelBar(db float64, width int) string {
	v := int((db + 60) / 60 * float64(width))
	if v < 0 {
		v = 0
	}
	if v > width {
		v = width
	}
	return renderBar(v, width, width)
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
