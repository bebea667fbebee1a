// ABOUTME: Tests for the separation service client
// ABOUTME: Uses an in-process TCP service speaking the framed protocol
package separation

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/loopmon/loopmon-go/internal/protocol"
)

// fakeService implements the wire protocol: status and drain sentinels
// plus framed uploads, echoing uploaded audio back negated.
type fakeService struct {
	listener net.Listener
	channels int
}

func newFakeService(t *testing.T, channels int) *fakeService {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeService{listener: l, channels: channels}
	go s.acceptLoop()
	t.Cleanup(func() { l.Close() })
	return s
}

func (s *fakeService) addr() string {
	return s.listener.Addr().String()
}

func (s *fakeService) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeService) handle(conn net.Conn) {
	defer conn.Close()

	var queued []float32
	header := make([]byte, 4)

	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		word := binary.LittleEndian.Uint32(header)

		switch word {
		case protocol.StatusSentinel:
			var resp [4]byte
			binary.LittleEndian.PutUint32(resp[:], uint32(len(queued)/s.channels))
			if _, err := conn.Write(resp[:]); err != nil {
				return
			}

		case protocol.DrainSentinel:
			frames := len(queued) / s.channels
			if frames > chunkFrames {
				frames = chunkFrames
			}
			reply := make([]byte, 4+frames*s.channels*4)
			binary.LittleEndian.PutUint32(reply, uint32(frames))
			for i := 0; i < frames*s.channels; i++ {
				binary.LittleEndian.PutUint32(reply[4+i*4:], math.Float32bits(queued[i]))
			}
			queued = queued[frames*s.channels:]
			if _, err := conn.Write(reply); err != nil {
				return
			}

		default:
			frames := int(word)
			payload := make([]byte, frames*s.channels*4)
			if _, err := io.ReadFull(conn, payload); err != nil {
				return
			}
			for i := 0; i < frames*s.channels; i++ {
				v := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
				queued = append(queued, -v)
			}
			if _, err := conn.Write(header); err != nil {
				return
			}
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestClientRoundTrip(t *testing.T) {
	svc := newFakeService(t, 2)

	c := NewClient(svc.addr(), 44100, 2)
	c.Start()
	defer c.Close()

	waitFor(t, 3*time.Second, c.Connected)

	in := make([]float32, 128*2)
	for i := range in {
		in[i] = float32(i) / 256
	}
	c.Push(in, 128)

	waitFor(t, 3*time.Second, func() bool { return c.SeparatedFrames() >= 128 })

	out := make([]float32, 128*2)
	if !c.PopSeparated(out, 128) {
		t.Fatal("expected 128 separated frames")
	}
	for i := range in {
		if out[i] != -in[i] {
			t.Fatalf("sample %d: got %f want %f", i, out[i], -in[i])
		}
	}

	stats := c.GetStats()
	if stats.SentFrames != 128 || stats.ReceivedFrames != 128 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if !stats.Connected {
		t.Error("stats should report connected")
	}
}

func TestClientUnreachableService(t *testing.T) {
	c := NewClient("127.0.0.1:1", 44100, 2)
	c.Start()
	defer c.Close()

	// No service: pushes must be absorbed and nothing separated.
	c.Push(make([]float32, 64*2), 64)
	time.Sleep(100 * time.Millisecond)

	if c.Connected() {
		t.Error("should not report connected")
	}
	if c.SeparatedFrames() != 0 {
		t.Error("no separated audio without a service")
	}
}

func TestClientCloseIsIdempotentWithoutStart(t *testing.T) {
	c := NewClient("", 44100, 2)
	c.Close() // must not hang
}
