// ABOUTME: Tests for the lossy bounded sample queue
// ABOUTME: Covers FIFO order, exact pops, and drop-oldest overflow
package separation

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := newSampleQueue(100, 2)

	in := []float32{1, 2, 3, 4, 5, 6}
	q.push(in, 3)

	if q.availableFrames() != 3 {
		t.Fatalf("expected 3 frames, got %d", q.availableFrames())
	}

	out := make([]float32, 6)
	if n := q.popUpTo(out, 3); n != 3 {
		t.Fatalf("expected to pop 3 frames, got %d", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %f want %f", i, out[i], in[i])
		}
	}
}

func TestPopUpToPartial(t *testing.T) {
	q := newSampleQueue(100, 1)
	q.push([]float32{1, 2}, 2)

	out := make([]float32, 10)
	if n := q.popUpTo(out, 10); n != 2 {
		t.Errorf("expected partial pop of 2, got %d", n)
	}
	if q.availableFrames() != 0 {
		t.Errorf("queue should be empty, has %d", q.availableFrames())
	}
}

func TestPopExact(t *testing.T) {
	q := newSampleQueue(100, 1)
	q.push([]float32{1, 2, 3}, 3)

	out := make([]float32, 4)
	if q.popExact(out, 4) {
		t.Error("popExact must fail when short")
	}
	if q.availableFrames() != 3 {
		t.Error("failed popExact must not consume")
	}

	if !q.popExact(out, 3) {
		t.Error("popExact should succeed with enough frames")
	}
	if out[0] != 1 || out[2] != 3 {
		t.Errorf("unexpected popped data: %v", out[:3])
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	q := newSampleQueue(4, 1)

	q.push([]float32{1, 2, 3, 4}, 4)
	q.push([]float32{5, 6}, 2)

	if q.availableFrames() != 4 {
		t.Fatalf("expected capacity-bound 4 frames, got %d", q.availableFrames())
	}

	out := make([]float32, 4)
	q.popUpTo(out, 4)
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: got %f want %f", i, out[i], want[i])
		}
	}
}

func TestOversizedPushKeepsNewest(t *testing.T) {
	q := newSampleQueue(2, 1)
	q.push([]float32{1, 2, 3, 4, 5}, 5)

	if q.availableFrames() != 2 {
		t.Fatalf("expected 2 frames, got %d", q.availableFrames())
	}
	out := make([]float32, 2)
	q.popUpTo(out, 2)
	if out[0] != 4 || out[1] != 5 {
		t.Errorf("expected newest frames, got %v", out)
	}
}

func TestReset(t *testing.T) {
	q := newSampleQueue(100, 2)
	q.push(make([]float32, 20), 10)
	q.reset()
	if q.availableFrames() != 0 {
		t.Error("reset should empty the queue")
	}
}
