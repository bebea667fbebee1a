// ABOUTME: Tests for the ring buffer's latency and fade policies
// ABOUTME: Covers exact reads, underrun fades, overflow, and emergency drain
package buffer

import (
	"math"
	"testing"
)

func newTestRing(latencyMs int) *Ring {
	return NewRing(Config{
		Channels:   2,
		SampleRate: 44100,
		LatencyMs:  latencyMs,
	})
}

func writeRamp(r *Ring, frames int, start float32) float32 {
	samples := make([]float32, frames*2)
	v := start
	for i := 0; i < frames; i++ {
		samples[i*2] = v
		samples[i*2+1] = -v
		v += 0.001
	}
	r.Write(samples, frames)
	return v
}

func TestTargetFromLatency(t *testing.T) {
	r := newTestRing(100)
	if r.TargetFrames() != 4410 {
		t.Errorf("expected target 4410 frames, got %d", r.TargetFrames())
	}

	r = NewRing(Config{Channels: 1, SampleRate: 48000, LatencyMs: 50})
	if r.TargetFrames() != 2400 {
		t.Errorf("expected target 2400 frames, got %d", r.TargetFrames())
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	r := newTestRing(100)

	in := make([]float32, 256*2)
	for i := range in {
		in[i] = float32(i) / 512
	}
	r.Write(in, 256)

	if r.Available() != 256 {
		t.Fatalf("expected 256 frames available, got %d", r.Available())
	}

	out := make([]float32, 256*2)
	r.Read(out, 256)

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d mismatch: got %f want %f", i, out[i], in[i])
		}
	}
	if r.Available() != 0 {
		t.Errorf("expected empty buffer, got %d frames", r.Available())
	}
}

func TestReadAlwaysFillsRequest(t *testing.T) {
	r := newTestRing(100)
	writeRamp(r, 100, 0.5)

	out := make([]float32, 300*2)
	for i := range out {
		out[i] = 99 // sentinel
	}
	r.Read(out, 300)

	for i := range out {
		if out[i] == 99 {
			t.Fatalf("sample %d not written", i)
		}
	}
}

func TestUnderrunFadesToSilence(t *testing.T) {
	r := newTestRing(100)

	// Constant signal, then starve the reader.
	in := make([]float32, 64*2)
	for i := range in {
		in[i] = 0.8
	}
	r.Write(in, 64)

	out := make([]float32, 128*2)
	r.Read(out, 128)

	// The fade region must be monotonically non-increasing in magnitude.
	prev := float64(math.Abs(float64(out[64*2])))
	for i := 65; i < 96; i++ {
		cur := math.Abs(float64(out[i*2]))
		if cur > prev+1e-6 {
			t.Fatalf("fade not monotonic at frame %d: %f > %f", i, cur, prev)
		}
		prev = cur
	}

	// Past the fade, pure silence.
	for i := 100; i < 128; i++ {
		if out[i*2] != 0 {
			t.Fatalf("expected silence at frame %d, got %f", i, out[i*2])
		}
	}

	stats := r.Stats()
	if stats.Underruns != 1 {
		t.Errorf("expected 1 underrun, got %d", stats.Underruns)
	}
}

func TestRepeatedStarvedReadsCountOneUnderrun(t *testing.T) {
	r := newTestRing(100)
	out := make([]float32, 64*2)

	r.Read(out, 64)
	r.Read(out, 64)
	r.Read(out, 64)

	if got := r.Stats().Underruns; got != 1 {
		t.Errorf("continuous starvation should count once, got %d", got)
	}
}

func TestRecoveryCrossfade(t *testing.T) {
	r := newTestRing(100)

	// Cause an underrun with a loud constant signal.
	in := make([]float32, 16*2)
	for i := range in {
		in[i] = 0.9
	}
	r.Write(in, 16)
	out := make([]float32, 64*2)
	r.Read(out, 64)

	// Recover with the same loud signal. The first frames should ramp
	// up from the held (now zero) value instead of jumping to 0.9.
	writeRamp(r, 128, 0.9)
	r.Read(out, 64)

	if math.Abs(float64(out[0])) > 0.2 {
		t.Errorf("first recovered sample should be near silence, got %f", out[0])
	}
	if math.Abs(float64(out[63*2])) < 0.5 {
		t.Errorf("end of recovered block should carry the live signal, got %f", out[63*2])
	}

	if r.Stats().Underruns != 1 {
		t.Errorf("recovery should not add underruns, got %d", r.Stats().Underruns)
	}
}

func TestOverflowEvictsOldest(t *testing.T) {
	// target 10, emergency 70, capacity 80
	r := NewRing(Config{
		Channels:      1,
		SampleRate:    1000,
		LatencyMs:     10,
		EmergencyMult: 7,
		CapacityMult:  8,
	})

	first := make([]float32, 60)
	for i := range first {
		first[i] = 1.0
	}
	r.Write(first, 60)

	// 60 + 30 exceeds capacity: the 10 oldest frames must be evicted.
	second := make([]float32, 30)
	for i := range second {
		second[i] = 2.0
	}
	r.Write(second, 30)

	stats := r.Stats()
	if stats.OverrunFrames != 10 {
		t.Errorf("expected 10 overrun frames, got %d", stats.OverrunFrames)
	}
	if stats.Available > 80 {
		t.Errorf("available %d exceeds capacity", stats.Available)
	}
}

func TestEmergencyDrain(t *testing.T) {
	r := NewRing(Config{Channels: 1, SampleRate: 1000, LatencyMs: 10}) // target 10, max 50

	block := make([]float32, 60)
	r.Write(block, 60)

	stats := r.Stats()
	if stats.DrainedFrames == 0 {
		t.Fatal("expected emergency drain past 5x target")
	}
	if stats.Available >= 60 {
		t.Errorf("drain did not reduce fill: %d", stats.Available)
	}
}

func TestReset(t *testing.T) {
	r := newTestRing(100)
	writeRamp(r, 100, 0.1)
	out := make([]float32, 256*2)
	r.Read(out, 256) // force an underrun

	r.Reset()
	stats := r.Stats()
	if stats.Available != 0 || stats.Underruns != 0 || stats.OverrunFrames != 0 {
		t.Errorf("reset left state behind: %+v", stats)
	}
}
