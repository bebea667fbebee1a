// ABOUTME: TCP client for the external vocal-separation service
// ABOUTME: Length-prefixed float32 framing with backoff reconnect and lossy queues
package separation

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopmon/loopmon-go/internal/protocol"
)

const (
	// DefaultAddr is the loopback endpoint the separation service
	// listens on.
	DefaultAddr = "127.0.0.1:19845"

	// chunkFrames is the largest message either direction carries.
	chunkFrames = protocol.MaxChunkFrames

	// queueSeconds sizes the in/out queues. The service introduces a
	// multi-second processing latency, so both sides buffer generously.
	queueSeconds = 10

	pollInterval = 50 * time.Millisecond
	dialTimeout  = 5 * time.Second
	ioTimeout    = 10 * time.Second

	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

// Stats are cumulative client counters for diagnostics.
type Stats struct {
	SentFrames     int64
	ReceivedFrames int64
	Reconnects     int64
	Connected      bool
}

// Client maintains a persistent connection to the separation service.
// The audio thread only touches the bounded queues; all network I/O
// happens on the pump goroutine. While the service is unreachable the
// queues simply sit empty and the stage falls back to the dry signal.
type Client struct {
	addr     string
	channels int

	outbound  *sampleQueue // dry audio awaiting upload
	separated *sampleQueue // separated audio awaiting playback

	chunk   []float32 // pump scratch, chunkFrames frames
	wireBuf []byte    // pump scratch, header + chunk payload

	connected      atomic.Bool
	sentFrames     atomic.Int64
	receivedFrames atomic.Int64
	reconnects     atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client for the given service address.
func NewClient(addr string, sampleRate, channels int) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	queueCap := sampleRate * queueSeconds

	return &Client{
		addr:      addr,
		channels:  channels,
		outbound:  newSampleQueue(queueCap, channels),
		separated: newSampleQueue(queueCap, channels),
		chunk:     make([]float32, chunkFrames*channels),
		wireBuf:   make([]byte, 4+chunkFrames*channels*4),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the network pump.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.pump()
}

// Push queues dry audio for upload. Never blocks; oldest audio is
// dropped if the service cannot keep up.
func (c *Client) Push(samples []float32, frames int) {
	c.outbound.push(samples, frames)
}

// PopSeparated fills dst with exactly frames separated frames if that
// many are queued, reporting whether it did.
func (c *Client) PopSeparated(dst []float32, frames int) bool {
	return c.separated.popExact(dst, frames)
}

// SeparatedFrames returns how many separated frames are queued.
func (c *Client) SeparatedFrames() int {
	return c.separated.availableFrames()
}

// Connected reports whether the service link is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// GetStats returns a snapshot of the client counters.
func (c *Client) GetStats() Stats {
	return Stats{
		SentFrames:     c.sentFrames.Load(),
		ReceivedFrames: c.receivedFrames.Load(),
		Reconnects:     c.reconnects.Load(),
		Connected:      c.connected.Load(),
	}
}

// Reset discards queued audio on both sides. Safe only while the
// pipeline is stopped.
func (c *Client) Reset() {
	c.outbound.reset()
	c.separated.reset()
}

// Close stops the pump and drops the connection.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// pump dials, serves, and redials with exponential backoff until closed.
func (c *Client) pump() {
	defer c.wg.Done()

	bo := newBackoff(backoffInitial, backoffMax)
	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			log.Printf("Separation service unavailable at %s: %v", c.addr, err)
			if !c.sleep(bo.next()) {
				return
			}
			continue
		}

		bo.reset()
		c.connected.Store(true)
		c.reconnects.Add(1)
		log.Printf("Connected to separation service at %s", c.addr)

		if queued, err := c.queryStatus(conn); err == nil {
			log.Printf("Separation service reports %d queued frames", queued)
		}

		err = c.serve(conn)
		c.connected.Store(false)
		_ = conn.Close()

		if c.ctx.Err() != nil {
			return
		}
		log.Printf("Separation service connection lost: %v", err)
		if !c.sleep(bo.next()) {
			return
		}
	}
}

// sleep waits for d or until the client is closed.
func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.ctx.Done():
		return false
	}
}

// serve runs the upload/drain cycle over one connection.
func (c *Client) serve(conn net.Conn) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Upload pending dry audio in bounded chunks.
		for {
			n := c.outbound.popUpTo(c.chunk, chunkFrames)
			if n == 0 {
				break
			}
			if err := c.writeAudio(conn, n); err != nil {
				return err
			}
			c.sentFrames.Add(int64(n))
			if n < chunkFrames {
				break
			}
		}

		// Drain separated output until the service runs dry.
		for {
			m, err := c.requestOutput(conn)
			if err != nil {
				return err
			}
			if m == 0 {
				break
			}
			c.receivedFrames.Add(int64(m))
			if m < chunkFrames {
				break
			}
		}
	}
}

// writeAudio sends one framed audio message and consumes the ACK.
func (c *Client) writeAudio(conn net.Conn, frames int) error {
	payload := frames * c.channels * 4
	binary.LittleEndian.PutUint32(c.wireBuf[:4], uint32(frames))
	protocol.EncodeSamples(c.wireBuf[4:], c.chunk[:frames*c.channels])

	if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(c.wireBuf[:4+payload]); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	// The service ACKs every upload with the accepted frame count.
	var ack [4]byte
	if _, err := io.ReadFull(conn, ack[:]); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	return nil
}

// requestOutput asks for pending separated audio and queues whatever
// the service returns, reporting the received frame count.
func (c *Client) requestOutput(conn net.Conn) (int, error) {
	if err := c.writeSentinel(conn, protocol.DrainSentinel); err != nil {
		return 0, err
	}

	header, err := protocol.ReadUint32(conn)
	if err != nil {
		return 0, fmt.Errorf("read output header: %w", err)
	}
	m := int(header)
	if m == 0 {
		return 0, nil
	}
	if m > chunkFrames {
		return 0, fmt.Errorf("separation service returned oversized chunk: %d frames", m)
	}

	payload := m * c.channels * 4
	if _, err := io.ReadFull(conn, c.wireBuf[:payload]); err != nil {
		return 0, fmt.Errorf("read output payload: %w", err)
	}
	protocol.DecodeSamples(c.chunk[:m*c.channels], c.wireBuf)
	c.separated.push(c.chunk, m)
	return m, nil
}

// queryStatus asks how many separated frames the service has queued.
func (c *Client) queryStatus(conn net.Conn) (int, error) {
	if err := c.writeSentinel(conn, protocol.StatusSentinel); err != nil {
		return 0, err
	}
	queued, err := protocol.ReadUint32(conn)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return int(queued), nil
}

// writeSentinel sends a bare 4-byte control header.
func (c *Client) writeSentinel(conn net.Conn, sentinel uint32) error {
	if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
		return err
	}
	if err := protocol.WriteUint32(conn, sentinel); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}
	return nil
}
