// ABOUTME: WAV file capture source
// ABOUTME: Decodes PCM WAV to interleaved float32 via go-audio/wav
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource streams a PCM WAV file as a capture source.
type WAVSource struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	scale   float32
}

// NewWAVSource opens and validates a WAV file for streaming.
func NewWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek pcm data: %w", err)
	}

	return &WAVSource{
		file:    f,
		decoder: dec,
		scale:   float32(int(1) << (dec.BitDepth - 1)),
	}, nil
}

// Read decodes the next block into interleaved float32 samples.
func (w *WAVSource) Read(samples []float32) (int, error) {
	if w.buf == nil || len(w.buf.Data) < len(samples) {
		w.buf = &audio.IntBuffer{
			Format:         w.decoder.Format(),
			SourceBitDepth: int(w.decoder.BitDepth),
			Data:           make([]int, len(samples)),
		}
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil {
		return 0, fmt.Errorf("read wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		samples[i] = float32(w.buf.Data[i]) / w.scale
	}

	return n / w.Channels(), nil
}

// SampleRate returns the file's sample rate.
func (w *WAVSource) SampleRate() int { return int(w.decoder.SampleRate) }

// Channels returns the file's channel count.
func (w *WAVSource) Channels() int { return int(w.decoder.NumChans) }

// Close closes the underlying file.
func (w *WAVSource) Close() error { return w.file.Close() }
