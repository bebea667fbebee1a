// ABOUTME: Tests for capture sources
// ABOUTME: Tone generator behavior and WAV file decode round trip
package source

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestToneSourceFormat(t *testing.T) {
	src := NewToneSource(48000, 2, 440, 0.5)
	if src.SampleRate() != 48000 {
		t.Errorf("SampleRate = %d", src.SampleRate())
	}
	if src.Channels() != 2 {
		t.Errorf("Channels = %d", src.Channels())
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestToneSourceGeneratesSine(t *testing.T) {
	const rate, freq, amp = 44100, 440.0, 0.5
	src := NewToneSource(rate, 2, freq, amp)

	buf := make([]float32, 1024*2)
	frames, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if frames != 1024 {
		t.Fatalf("frames = %d", frames)
	}

	step := 2 * math.Pi * freq / rate
	for i := 0; i < frames; i++ {
		want := amp * math.Sin(float64(i)*step)
		got := float64(buf[i*2])
		if math.Abs(got-want) > 1e-4 {
			t.Fatalf("sample %d: got %f want %f", i, got, want)
		}
		if buf[i*2] != buf[i*2+1] {
			t.Fatalf("channels differ at frame %d", i)
		}
	}
}

func TestToneSourceContinuousAcrossReads(t *testing.T) {
	src := NewToneSource(44100, 1, 1000, 1.0)

	a := make([]float32, 100)
	b := make([]float32, 100)
	src.Read(a)
	src.Read(b)

	// The second block must continue the phase, not restart it.
	step := 2 * math.Pi * 1000 / 44100
	want := math.Sin(100 * step)
	if math.Abs(float64(b[0])-want) > 1e-4 {
		t.Errorf("phase discontinuity: got %f want %f", b[0], want)
	}
}

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVSourceRoundTrip(t *testing.T) {
	data := make([]int, 200*2)
	for i := 0; i < 200; i++ {
		data[i*2] = 16384   // 0.5 left
		data[i*2+1] = -8192 // -0.25 right
	}
	path := writeTestWAV(t, 22050, 2, data)

	src, err := NewWAVSource(path)
	if err != nil {
		t.Fatalf("NewWAVSource failed: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 22050 || src.Channels() != 2 {
		t.Fatalf("format mismatch: %d Hz %dch", src.SampleRate(), src.Channels())
	}

	buf := make([]float32, 200*2)
	frames, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if frames != 200 {
		t.Fatalf("frames = %d", frames)
	}
	if math.Abs(float64(buf[0])-0.5) > 1e-3 {
		t.Errorf("left sample = %f", buf[0])
	}
	if math.Abs(float64(buf[1])+0.25) > 1e-3 {
		t.Errorf("right sample = %f", buf[1])
	}

	if _, err := src.Read(buf); err != io.EOF {
		t.Errorf("expected EOF after file end, got %v", err)
	}
}

func TestWAVSourceRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWAVSource(path); err == nil {
		t.Error("expected error for invalid file")
	}
}

func TestWAVSourceMissingFile(t *testing.T) {
	if _, err := NewWAVSource("/nonexistent/file.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}
