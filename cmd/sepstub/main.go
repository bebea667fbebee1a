// ABOUTME: Stand-in vocal separation service for development
// ABOUTME: Speaks the separation wire protocol with a center-cancel model
package main

import (
	"encoding/binary"
	"flag"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/loopmon/loopmon-go/internal/protocol"
)

var (
	addr     = flag.String("addr", "127.0.0.1:19845", "Listen address")
	channels = flag.Int("channels", 2, "Channel count")
	strength = flag.Float64("strength", 0.9, "Center-cancel strength (0-1)")
	delayMs  = flag.Int("delay-ms", 500, "Simulated model latency per chunk")
	chunk    = flag.Int("chunk-frames", 4096, "Frames per simulated processing chunk")
)

func main() {
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	log.Printf("Separation stub listening on %s (%d channels, strength %.2f, delay %dms)",
		*addr, *channels, *strength, *delayMs)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			return
		}
		log.Printf("Client connected: %s", conn.RemoteAddr())
		handle(conn)
		log.Printf("Client disconnected: %s", conn.RemoteAddr())
	}
}

// session holds the per-connection frame queues.
type session struct {
	mu      sync.Mutex
	pending []float32 // awaiting "processing"
	ready   []float32 // processed, awaiting drain
	done    chan struct{}
}

func handle(conn net.Conn) {
	defer conn.Close()

	s := &session{done: make(chan struct{})}
	defer close(s.done)

	go s.processLoop()

	ch := *channels
	var payload []byte

	for {
		word, err := protocol.ReadUint32(conn)
		if err != nil {
			return
		}

		switch word {
		case protocol.StatusSentinel:
			s.mu.Lock()
			avail := len(s.ready) / ch
			s.mu.Unlock()
			if err := protocol.WriteUint32(conn, uint32(avail)); err != nil {
				return
			}

		case protocol.DrainSentinel:
			s.mu.Lock()
			frames := len(s.ready) / ch
			if frames > protocol.MaxChunkFrames {
				frames = protocol.MaxChunkFrames
			}
			out := s.ready[:frames*ch]
			rest := s.ready[frames*ch:]

			reply := make([]byte, 4+len(out)*4)
			binary.LittleEndian.PutUint32(reply, uint32(frames))
			protocol.EncodeSamples(reply[4:], out)
			s.ready = append(s.ready[:0], rest...)
			s.mu.Unlock()

			if _, err := conn.Write(reply); err != nil {
				return
			}

		default:
			frames := int(word)
			need := frames * ch * 4
			if cap(payload) < need {
				payload = make([]byte, need)
			}
			if _, err := io.ReadFull(conn, payload[:need]); err != nil {
				return
			}

			samples := make([]float32, frames*ch)
			protocol.DecodeSamples(samples, payload)

			s.mu.Lock()
			s.pending = append(s.pending, samples...)
			s.mu.Unlock()

			if err := protocol.WriteUint32(conn, word); err != nil {
				return
			}
		}
	}
}

// processLoop moves audio from pending to ready in chunks, applying
// the center cancel after a simulated model delay.
func (s *session) processLoop() {
	ch := *channels
	chunkSamples := *chunk * ch
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		n := len(s.pending)
		if n > chunkSamples {
			n = chunkSamples
		}
		n -= n % ch
		if n == 0 {
			s.mu.Unlock()
			continue
		}
		block := make([]float32, n)
		copy(block, s.pending[:n])
		s.pending = append(s.pending[:0], s.pending[n:]...)
		s.mu.Unlock()

		time.Sleep(time.Duration(*delayMs) * time.Millisecond)
		cancelCenter(block, ch, float32(*strength))

		s.mu.Lock()
		s.ready = append(s.ready, block...)
		s.mu.Unlock()
	}
}

// cancelCenter removes a fraction of the mid signal from each frame.
func cancelCenter(samples []float32, channels int, strength float32) {
	if channels != 2 {
		return
	}
	for i := 0; i+1 < len(samples); i += 2 {
		mid := (samples[i] + samples[i+1]) * 0.5
		samples[i] -= strength * mid
		samples[i+1] -= strength * mid
	}
}
