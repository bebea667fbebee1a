// ABOUTME: Audio output using oto library
// ABOUTME: Pulls rendered float32 blocks from the pipeline callback
package player

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"github.com/ebitengine/oto/v3"
)

// RenderFunc fills out with frames frames of interleaved float32 audio.
// It is called from the audio device's read goroutine.
type RenderFunc func(out []float32, frames int)

// Output manages the audio device and drives the render callback.
type Output struct {
	otoCtx   *oto.Context
	player   *oto.Player
	channels int
	ready    bool
}

// NewOutput creates an audio output.
func NewOutput() *Output {
	return &Output{}
}

// Initialize sets up oto and starts pulling audio from render.
func (o *Output) Initialize(sampleRate, channels int, render RenderFunc) error {
	if o.otoCtx != nil {
		return fmt.Errorf("output already initialized")
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.channels = channels
	o.ready = true

	reader := &renderReader{
		render:   render,
		channels: channels,
		scratch:  make([]float32, maxPullFrames*channels),
	}
	o.player = ctx.NewPlayer(reader)
	o.player.SetBufferSize(pullBufferFrames * channels * 4)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels",
		sampleRate, channels)

	return nil
}

// Close stops playback and releases the device.
func (o *Output) Close() error {
	o.ready = false
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			return fmt.Errorf("close player: %w", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.otoCtx = nil
	}
	return nil
}

const (
	// maxPullFrames bounds a single device read.
	maxPullFrames = 4096

	// pullBufferFrames sizes the device-side buffer. Small enough to
	// keep monitoring latency dominated by the jitter buffer.
	pullBufferFrames = 1024
)

// renderReader adapts the render callback to oto's io.Reader pull model.
type renderReader struct {
	render   RenderFunc
	channels int
	scratch  []float32
}

func (r *renderReader) Read(p []byte) (int, error) {
	bytesPerFrame := r.channels * 4
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		// Undersized read, pad with silence to keep the device fed.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if frames > maxPullFrames {
		frames = maxPullFrames
	}

	out := r.scratch[:frames*r.channels]
	r.render(out, frames)

	for i, v := range out {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}

	return frames * bytesPerFrame, nil
}
