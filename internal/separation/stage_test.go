// ABOUTME: Tests for the model-assisted karaoke stage
// ABOUTME: Covers dry fallback, aligned mixing, and intensity handling
package separation

import (
	"testing"
)

// offlineClient returns a client whose pump never runs, so tests can
// drive its queues directly.
func offlineClient() *Client {
	return NewClient("127.0.0.1:1", 44100, 2)
}

func TestDryPassthroughWhenOffline(t *testing.T) {
	c := offlineClient()
	s := NewStage(c, 44100, 2, 512)

	buf := make([]float32, 64*2)
	want := make([]float32, len(buf))
	for i := range buf {
		buf[i] = float32(i) / 100
		want[i] = buf[i]
	}

	s.Process(buf, 64)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("sample %d modified without separated audio", i)
		}
	}
}

func TestWetReplacesDryAtFullIntensity(t *testing.T) {
	c := offlineClient()
	s := NewStage(c, 44100, 2, 512)
	s.SetIntensity(1.0)

	// Hand the client pre-separated audio as if the service had replied.
	wet := make([]float32, 64*2)
	for i := range wet {
		wet[i] = 0.25
	}
	c.separated.push(wet, 64)

	buf := make([]float32, 64*2)
	for i := range buf {
		buf[i] = 0.9
	}
	s.Process(buf, 64)

	for i := range buf {
		if buf[i] != 0.25 {
			t.Fatalf("sample %d: got %f, expected pure wet signal", i, buf[i])
		}
	}
}

func TestMixAtHalfIntensity(t *testing.T) {
	c := offlineClient()
	s := NewStage(c, 44100, 2, 512)
	s.SetIntensity(0.5)

	wet := make([]float32, 64*2)
	for i := range wet {
		wet[i] = 0.2
	}
	c.separated.push(wet, 64)

	buf := make([]float32, 64*2)
	for i := range buf {
		buf[i] = 0.8
	}
	s.Process(buf, 64)

	// Dry 0.8 and wet 0.2 at 50/50 mix.
	for i := range buf {
		if buf[i] < 0.49 || buf[i] > 0.51 {
			t.Fatalf("sample %d: got %f, expected ~0.5", i, buf[i])
		}
	}
}

func TestOversizeBlockPassesThrough(t *testing.T) {
	c := offlineClient()
	s := NewStage(c, 44100, 2, 64)

	buf := make([]float32, 128*2)
	for i := range buf {
		buf[i] = 0.3
	}
	s.Process(buf, 128)

	for i := range buf {
		if buf[i] != 0.3 {
			t.Fatal("oversize block must pass through untouched")
		}
	}
}

func TestIntensityClamp(t *testing.T) {
	s := NewStage(offlineClient(), 44100, 2, 64)

	s.SetIntensity(2.0)
	if s.Intensity() != 1.0 {
		t.Errorf("expected clamp to 1.0, got %f", s.Intensity())
	}
	s.SetIntensity(-1.0)
	if s.Intensity() != 0 {
		t.Errorf("expected clamp to 0, got %f", s.Intensity())
	}
}

func TestResetDropsAlignment(t *testing.T) {
	c := offlineClient()
	s := NewStage(c, 44100, 2, 64)

	buf := make([]float32, 32*2)
	s.Process(buf, 32)
	s.Reset()

	if s.dryDelay.availableFrames() != 0 {
		t.Error("reset should drop queued dry audio")
	}
}
