// ABOUTME: Fixed-capacity ring buffer bridging capture and render clocks
// ABOUTME: Owns overrun/underrun policy and click-free fade handling
package buffer

import "sync"

const (
	// fadeFrames caps the length of the fade-to-silence on underrun and
	// the recovery crossfade on the following read.
	fadeFrames = 32

	// drainChunk is how many frames a single write may discard beyond
	// ordinary overflow eviction when the buffer is far past target.
	drainChunk = 64

	// DefaultEmergencyMultiple sets the emergency drain threshold as a
	// multiple of the target fill level.
	DefaultEmergencyMultiple = 5

	// DefaultCapacityMultiple sets buffer capacity as a multiple of the
	// target fill level.
	DefaultCapacityMultiple = 8
)

// Config describes a ring buffer for one pipeline run.
type Config struct {
	Channels      int
	SampleRate    int // output (render) sample rate
	LatencyMs     int // target buffered latency
	EmergencyMult int // emergency drain threshold, in targets (0 = default)
	CapacityMult  int // capacity, in targets (0 = default)
}

// Stats holds diagnostic counters. All values are cumulative for the
// current run; they are informational only and never fatal.
type Stats struct {
	Underruns     int64
	OverrunFrames int64
	DrainedFrames int64
	Available     int
	Target        int
}

// Ring is a single-producer/single-consumer circular buffer of
// interleaved float32 samples. The producer writes resampled capture
// audio; the consumer reads exactly the frame count the render device
// demands. Both sides share one mutex held only for bounded,
// allocation-free copy work.
type Ring struct {
	mu sync.Mutex

	buf       []float32
	channels  int
	capacity  int // frames
	target    int // frames
	max       int // frames, emergency drain threshold
	readIdx   int // frames
	writeIdx  int // frames
	available int // frames

	lastSample  []float32 // last emitted value per channel
	wasUnderrun bool

	underruns     int64
	overrunFrames int64
	drainedFrames int64
}

// NewRing creates a ring buffer sized from the configured target latency.
func NewRing(cfg Config) *Ring {
	target := (cfg.LatencyMs*cfg.SampleRate + 500) / 1000
	if target < 1 {
		target = 1
	}
	emergency := cfg.EmergencyMult
	if emergency <= 0 {
		emergency = DefaultEmergencyMultiple
	}
	capMult := cfg.CapacityMult
	if capMult <= emergency {
		capMult = DefaultCapacityMultiple
	}
	capacity := target * capMult

	return &Ring{
		buf:        make([]float32, capacity*cfg.Channels),
		channels:   cfg.Channels,
		capacity:   capacity,
		target:     target,
		max:        target * emergency,
		lastSample: make([]float32, cfg.Channels),
	}
}

// TargetFrames returns the fill level the drift controller steers toward.
func (r *Ring) TargetFrames() int {
	return r.target
}

// Available returns the number of buffered frames.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Write copies frames into the buffer. The producer never blocks: if the
// incoming data would exceed capacity the oldest frames are evicted
// first, and if the buffer has drifted far past target a small extra
// chunk is drained to claw back latency without an audible jump.
func (r *Ring) Write(samples []float32, frames int) {
	if frames <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if frames > r.capacity {
		// Keep only the newest capacity frames.
		skip := frames - r.capacity
		samples = samples[skip*r.channels:]
		r.overrunFrames += int64(skip)
		frames = r.capacity
	}

	// Ordinary overflow: evict oldest frames to make room.
	if overflow := r.available + frames - r.capacity; overflow > 0 {
		r.advanceRead(overflow)
		r.overrunFrames += int64(overflow)
	}

	for i := 0; i < frames; i++ {
		base := r.writeIdx * r.channels
		src := i * r.channels
		for ch := 0; ch < r.channels; ch++ {
			r.buf[base+ch] = samples[src+ch]
		}
		r.writeIdx++
		if r.writeIdx == r.capacity {
			r.writeIdx = 0
		}
	}
	r.available += frames

	// Emergency drain: well past target, shed a small fixed chunk per
	// write so recovery is spread over many calls.
	if r.available > r.max {
		drop := drainChunk
		if drop > r.available-r.target {
			drop = r.available - r.target
		}
		r.advanceRead(drop)
		r.drainedFrames += int64(drop)
	}
}

// Read fills out with exactly frames frames. A shortfall is covered by
// fading the last emitted sample to silence; the first read after an
// underrun crossfades back up to the live signal to avoid a click.
func (r *Ring) Read(out []float32, frames int) {
	if frames <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	live := frames
	if live > r.available {
		live = r.available
	}

	recovering := r.wasUnderrun && live > 0
	crossLen := 0
	if recovering {
		crossLen = fadeFrames
		if crossLen > live {
			crossLen = live
		}
	}

	for i := 0; i < live; i++ {
		base := r.readIdx * r.channels
		dst := i * r.channels
		for ch := 0; ch < r.channels; ch++ {
			v := r.buf[base+ch]
			if i < crossLen {
				// Ramp from the faded-out hold value to the live signal.
				w := float32(i+1) / float32(crossLen)
				v = r.lastSample[ch]*(1-w) + v*w
			}
			out[dst+ch] = v
			r.lastSample[ch] = v
		}
		r.readIdx++
		if r.readIdx == r.capacity {
			r.readIdx = 0
		}
	}
	r.available -= live
	if recovering {
		r.wasUnderrun = false
	}

	if live == frames {
		return
	}

	// Underrun: fade the held sample linearly to silence, then zeros.
	missing := frames - live
	fade := fadeFrames
	if fade > missing {
		fade = missing
	}
	hold := r.lastSample
	for i := 0; i < missing; i++ {
		dst := (live + i) * r.channels
		var gain float32
		if i < fade {
			gain = 1 - float32(i+1)/float32(fade)
		}
		for ch := 0; ch < r.channels; ch++ {
			out[dst+ch] = hold[ch] * gain
		}
	}
	for ch := range r.lastSample {
		r.lastSample[ch] = 0
	}
	if !r.wasUnderrun {
		r.underruns++
	}
	r.wasUnderrun = true
}

// advanceRead discards n buffered frames. Caller holds the lock.
func (r *Ring) advanceRead(n int) {
	r.readIdx = (r.readIdx + n) % r.capacity
	r.available -= n
}

// Stats returns a snapshot of the diagnostic counters.
func (r *Ring) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Underruns:     r.underruns,
		OverrunFrames: r.overrunFrames,
		DrainedFrames: r.drainedFrames,
		Available:     r.available,
		Target:        r.target,
	}
}

// Reset clears indices, fade state, and counters but keeps capacity.
// Only safe when both producer and consumer are stopped.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readIdx = 0
	r.writeIdx = 0
	r.available = 0
	r.wasUnderrun = false
	for ch := range r.lastSample {
		r.lastSample[ch] = 0
	}
	r.underruns = 0
	r.overrunFrames = 0
	r.drainedFrames = 0
}
