// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the monitoring UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls holds channels for user-initiated setting changes
type Controls struct {
	Changes chan ControlMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan ControlMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		controls: controls,
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
