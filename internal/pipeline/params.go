// ABOUTME: Immutable parameter snapshots for real-time thread handoff
// ABOUTME: Control-path writes publish a new snapshot via atomic pointer swap
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/loopmon/loopmon-go/internal/dsp"
)

// KaraokeMode selects the vocal-suppression implementation.
type KaraokeMode int

const (
	// KaraokeLocal is the on-thread 3-band mid/side suppressor.
	KaraokeLocal KaraokeMode = iota
	// KaraokeModel delegates to the external separation service.
	KaraokeModel
)

// Params is one immutable snapshot of every control-surface setting the
// real-time threads read. The control path never mutates a published
// snapshot; it copies, edits, and swaps. Real-time threads load the
// pointer once per callback and compare Version to decide whether their
// thread-owned component state needs recomputing.
type Params struct {
	Version uint64

	Volume float32

	Compressor        dsp.CompressorParams
	CompressorEnabled bool

	EQGains   [dsp.BandCount]float64
	EQEnabled bool

	KaraokeEnabled   bool
	KaraokeMode      KaraokeMode
	KaraokeIntensity float32

	DriftEnabled bool
}

// paramStore serializes publishers and hands snapshots to readers
// without any reader-side lock.
type paramStore struct {
	mu      sync.Mutex // serializes publishers only
	current atomic.Pointer[Params]
}

func newParamStore(initial Params) *paramStore {
	s := &paramStore{}
	initial.Version = 1
	s.current.Store(&initial)
	return s
}

// load returns the current snapshot. Safe from any thread.
func (s *paramStore) load() *Params {
	return s.current.Load()
}

// publish copies the current snapshot, applies mutate, bumps the
// version, and swaps the pointer.
func (s *paramStore) publish(mutate func(*Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	mutate(&next)
	next.Version++
	s.current.Store(&next)
}
