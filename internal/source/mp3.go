// ABOUTME: MP3 file capture source
// ABOUTME: Decodes MP3 to interleaved float32 stereo via go-mp3
package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Source streams a decoded MP3 file as a capture source. The
// decoder always produces 16-bit stereo at the file's sample rate.
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	raw     []byte
}

// NewMP3Source opens and prepares an MP3 file for streaming.
func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	return &MP3Source{file: f, decoder: dec}, nil
}

// Read decodes the next block into interleaved float32 samples.
func (m *MP3Source) Read(samples []float32) (int, error) {
	want := len(samples) * 2
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}
	raw := m.raw[:want]

	n, err := io.ReadFull(m.decoder, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read mp3: %w", err)
	}

	count := n / 2
	for i := 0; i < count; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768.0
	}

	return count / 2, nil
}

// SampleRate returns the file's native sample rate.
func (m *MP3Source) SampleRate() int { return m.decoder.SampleRate() }

// Channels returns 2; go-mp3 always decodes to stereo.
func (m *MP3Source) Channels() int { return 2 }

// Close closes the underlying file.
func (m *MP3Source) Close() error { return m.file.Close() }
