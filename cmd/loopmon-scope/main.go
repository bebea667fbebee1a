// ABOUTME: Terminal spectrum viewer for a running monitor
// ABOUTME: Discovers the viz endpoint via mDNS and renders its frame stream
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loopmon/loopmon-go/internal/discovery"
	"github.com/loopmon/loopmon-go/internal/viz"
)

var (
	addr    = flag.String("addr", "", "Viz endpoint host:port (skips discovery)")
	timeout = flag.Duration("timeout", 10*time.Second, "Discovery timeout")
)

func main() {
	flag.Parse()

	endpoint := *addr
	if endpoint == "" {
		found, err := discover(*timeout)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		endpoint = found
	}

	client := viz.NewClient(endpoint)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := client.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	p := tea.NewProgram(newScope(endpoint), tea.WithAltScreen())

	go func() {
		for frame := range client.Frames() {
			p.Send(frame)
		}
		p.Send(streamClosedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		log.Fatalf("Scope error: %v", err)
	}
}

// discover waits for the first monitor instance on the local network.
func discover(timeout time.Duration) (string, error) {
	browser := discovery.NewBrowser()
	browser.Start()
	defer browser.Stop()

	log.Printf("Browsing for monitor instances...")
	select {
	case inst := <-browser.Instances():
		return fmt.Sprintf("%s:%d", inst.Host, inst.Port), nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no monitor found within %s", timeout)
	}
}

type streamClosedMsg struct{}

var glyphs = []rune(" ▁▂▃▄▅▆▇█")

// scope is the minimal frame-rendering model.
type scope struct {
	endpoint string
	frame    viz.Frame
	haveData bool
	closed   bool
	width    int
}

func newScope(endpoint string) scope {
	return scope{endpoint: endpoint}
}

func (s scope) Init() tea.Cmd {
	return nil
}

func (s scope) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
	case viz.Frame:
		s.frame = msg
		s.haveData = true
	case streamClosedMsg:
		s.closed = true
	}
	return s, nil
}

func (s scope) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "  loopmon scope  %s\n\n", s.endpoint)

	if s.closed {
		b.WriteString("  Stream closed. Press q to quit.\n")
		return b.String()
	}
	if !s.haveData {
		b.WriteString("  Waiting for frames...\n")
		return b.String()
	}

	b.WriteString("  ")
	for _, v := range s.frame.Bands {
		idx := int(v * float32(len(glyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(glyphs) {
			idx = len(glyphs) - 1
		}
		b.WriteRune(glyphs[idx])
		b.WriteRune(glyphs[idx])
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  Peak %6.1f dB   RMS %6.1f dB", s.frame.PeakDB, s.frame.RMSDB)
	if s.frame.Underrun {
		b.WriteString("   UNDERRUN")
	}
	b.WriteString("\n\n  q: quit\n")

	return b.String()
}
