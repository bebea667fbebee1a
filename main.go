// ABOUTME: Entry point for the loopmon live monitor
// ABOUTME: Parses CLI flags, builds the capture source, and runs the app
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/loopmon/loopmon-go/internal/app"
	"github.com/loopmon/loopmon-go/internal/config"
	"github.com/loopmon/loopmon-go/internal/source"
	"github.com/loopmon/loopmon-go/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file")
	inputFile  = flag.String("file", "", "Audio file to monitor (WAV or MP3). Empty = test tone")
	toneHz     = flag.Float64("tone-hz", 440, "Test tone frequency when no file is given")
	outputRate = flag.Int("output-rate", 0, "Output sample rate (default: config value)")
	latencyMs  = flag.Int("latency-ms", 0, "Jitter buffer latency in milliseconds")
	karaoke    = flag.String("karaoke", "", "Karaoke mode: off, local, or model")
	sepAddr    = flag.String("separation-addr", "", "Separation service address (host:port)")
	vizPort    = flag.Int("viz-port", 0, "Visualization WebSocket port (0 = config value)")
	noViz      = flag.Bool("no-viz", false, "Disable the visualization server")
	logFile    = flag.String("log-file", "loopmon.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")
)

func main() {
	flag.Parse()

	useTUI := !(*noTUI || *streamLogs)

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	settings, err := loadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	src, err := buildSource(settings)
	if err != nil {
		log.Fatalf("Source error: %v", err)
	}

	if !useTUI {
		log.Printf("Starting %s %s", version.Product, version.Version)
		log.Printf("TUI disabled - logging to stdout")
	}

	monitor, err := app.New(app.Config{
		Settings: settings,
		Source:   src,
		UseTUI:   useTUI,
		VizOff:   *noViz,
	})
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutting down...")
		monitor.Stop()
	}()

	if err := monitor.Start(); err != nil {
		log.Fatalf("Monitor failed: %v", err)
	}
	monitor.Stop()
}

// loadSettings merges the config file and CLI flag overrides.
func loadSettings() (config.Config, error) {
	settings := config.Default()
	if *configPath != "" {
		var err error
		settings, err = config.Load(*configPath)
		if err != nil {
			return settings, err
		}
	}

	if *outputRate != 0 {
		settings.OutputSampleRate = *outputRate
	}
	if *latencyMs != 0 {
		settings.LatencyMs = *latencyMs
	}
	if *sepAddr != "" {
		settings.SeparationAddr = *sepAddr
	}
	if *vizPort != 0 {
		settings.VizPort = *vizPort
	}

	switch *karaoke {
	case "":
	case "off":
		settings.Karaoke.Enabled = false
	case "local", "model":
		settings.Karaoke.Enabled = true
		settings.Karaoke.Mode = *karaoke
	default:
		log.Fatalf("Unknown karaoke mode: %s", *karaoke)
	}

	return settings, settings.Validate()
}

// buildSource opens the requested capture source.
func buildSource(settings config.Config) (source.CaptureSource, error) {
	if *inputFile == "" {
		log.Printf("No input file, generating %.0fHz test tone", *toneHz)
		return source.NewToneSource(settings.InputSampleRate, settings.Channels, *toneHz, 0.5), nil
	}

	switch strings.ToLower(filepath.Ext(*inputFile)) {
	case ".mp3":
		return source.NewMP3Source(*inputFile)
	default:
		return source.NewWAVSource(*inputFile)
	}
}
