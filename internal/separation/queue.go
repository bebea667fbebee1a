// ABOUTME: Bounded interleaved sample queue shared between audio and I/O threads
// ABOUTME: Drop-oldest overflow, short critical sections, no allocation after construction
package separation

import "sync"

// sampleQueue is a fixed-capacity FIFO of interleaved float32 frames.
// One side is the real-time audio callback, the other the network pump;
// the mutex is only ever held for bounded copy work. Overflow drops the
// oldest frames so a stalled peer never blocks audio.
type sampleQueue struct {
	mu        sync.Mutex
	buf       []float32
	channels  int
	capacity  int // frames
	readIdx   int
	writeIdx  int
	available int
	dropped   int64
}

func newSampleQueue(capacityFrames, channels int) *sampleQueue {
	return &sampleQueue{
		buf:      make([]float32, capacityFrames*channels),
		channels: channels,
		capacity: capacityFrames,
	}
}

// push appends frames, evicting the oldest on overflow.
func (q *sampleQueue) push(samples []float32, frames int) {
	if frames <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if frames > q.capacity {
		skip := frames - q.capacity
		samples = samples[skip*q.channels:]
		q.dropped += int64(skip)
		frames = q.capacity
	}
	if overflow := q.available + frames - q.capacity; overflow > 0 {
		q.readIdx = (q.readIdx + overflow) % q.capacity
		q.available -= overflow
		q.dropped += int64(overflow)
	}
	for i := 0; i < frames; i++ {
		base := q.writeIdx * q.channels
		src := i * q.channels
		for ch := 0; ch < q.channels; ch++ {
			q.buf[base+ch] = samples[src+ch]
		}
		q.writeIdx++
		if q.writeIdx == q.capacity {
			q.writeIdx = 0
		}
	}
	q.available += frames
}

// popUpTo removes at most maxFrames frames into dst, returning the
// number of frames copied.
func (q *sampleQueue) popUpTo(dst []float32, maxFrames int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := maxFrames
	if n > q.available {
		n = q.available
	}
	q.popLocked(dst, n)
	return n
}

// popExact removes exactly frames frames into dst, or nothing at all.
func (q *sampleQueue) popExact(dst []float32, frames int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.available < frames {
		return false
	}
	q.popLocked(dst, frames)
	return true
}

// popLocked copies and removes n frames. Caller holds the lock.
func (q *sampleQueue) popLocked(dst []float32, n int) {
	for i := 0; i < n; i++ {
		base := q.readIdx * q.channels
		out := i * q.channels
		for ch := 0; ch < q.channels; ch++ {
			dst[out+ch] = q.buf[base+ch]
		}
		q.readIdx++
		if q.readIdx == q.capacity {
			q.readIdx = 0
		}
	}
	q.available -= n
}

func (q *sampleQueue) availableFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.available
}

func (q *sampleQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.readIdx = 0
	q.writeIdx = 0
	q.available = 0
}
