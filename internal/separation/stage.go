// ABOUTME: Model-assisted karaoke stage mixing separated and dry audio
// ABOUTME: Aligns the delayed separated stream against a dry delay queue
package separation

import (
	"math"
	"sync/atomic"
)

// Stage replaces the local mid/side suppressor when model-assisted mode
// is selected. The service runs seconds behind real time, so the dry
// signal is queued alongside the upload: once separated audio arrives,
// each separated frame is mixed against the dry frame it was computed
// from. Until then, and whenever the service falls behind or drops, the
// live dry signal passes through unmodified.
type Stage struct {
	client   *Client
	channels int

	intensityBits atomic.Uint32 // float32 bits; written from the control path

	dryDelay *sampleQueue
	wet      []float32
	dryOld   []float32
}

// NewStage creates a stage over an existing client. maxFrames is the
// largest per-callback frame count the render device will request.
func NewStage(client *Client, sampleRate, channels, maxFrames int) *Stage {
	s := &Stage{
		client:   client,
		channels: channels,
		dryDelay: newSampleQueue(sampleRate*queueSeconds, channels),
		wet:      make([]float32, maxFrames*channels),
		dryOld:   make([]float32, maxFrames*channels),
	}
	s.SetIntensity(1.0)
	return s
}

// SetIntensity sets the dry/wet mix in [0,1]; 1.0 plays only the
// separated signal. Safe to call from the control path.
func (s *Stage) SetIntensity(intensity float32) {
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}
	s.intensityBits.Store(math.Float32bits(intensity))
}

// Intensity returns the current mix setting.
func (s *Stage) Intensity() float32 {
	return math.Float32frombits(s.intensityBits.Load())
}

// Process runs one render callback's worth of audio through the stage
// in place. Bounded work only: queue copies and arithmetic.
func (s *Stage) Process(samples []float32, frames int) {
	if frames*s.channels > len(s.wet) {
		// Larger than the promised maximum; pass through rather than
		// touch unsized scratch.
		return
	}

	// Feed the service and remember the dry signal for alignment.
	s.client.Push(samples, frames)
	s.dryDelay.push(samples, frames)

	if !s.client.PopSeparated(s.wet, frames) {
		// Nothing separated yet (or the service is down): play the live
		// dry signal and keep the delay queue from holding stale audio
		// the service will never answer for.
		if !s.client.Connected() {
			s.dryDelay.popUpTo(s.dryOld, frames)
		}
		return
	}

	if !s.dryDelay.popExact(s.dryOld, frames) {
		// Alignment lost (queue overflowed); play the wet signal alone.
		copy(s.dryOld[:frames*s.channels], s.wet[:frames*s.channels])
	}

	intensity := s.Intensity()
	dryGain := 1 - intensity
	for i := 0; i < frames*s.channels; i++ {
		samples[i] = s.dryOld[i]*dryGain + s.wet[i]*intensity
	}
}

// Reset drops all queued alignment audio.
func (s *Stage) Reset() {
	s.dryDelay.reset()
}
