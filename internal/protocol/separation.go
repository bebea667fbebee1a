// ABOUTME: Wire protocol shared by the separation client and service
// ABOUTME: Little-endian u32 headers framing interleaved float32 audio
package protocol

import (
	"encoding/binary"
	"io"
	"math"
)

// Every message starts with a little-endian uint32 header. A frame
// count announces an audio upload; two values are reserved as control
// sentinels.
const (
	// StatusSentinel asks for the service's queued output frame count.
	StatusSentinel uint32 = 0

	// DrainSentinel asks the service to return pending separated audio.
	DrainSentinel uint32 = 0xFFFFFFFF

	// MaxChunkFrames is the largest audio message either direction
	// carries.
	MaxChunkFrames = 4096
)

// WriteUint32 writes one little-endian header word.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads one little-endian header word.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// EncodeSamples packs float32 samples into dst as little-endian words.
// dst must hold len(src)*4 bytes.
func EncodeSamples(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// DecodeSamples unpacks little-endian words from src into dst. src
// must hold len(dst)*4 bytes.
func DecodeSamples(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
