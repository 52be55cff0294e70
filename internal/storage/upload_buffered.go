package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// uploadRingBuffer is the buffered upload driver's rolling in-memory
// buffer (spec §4.9): it retains bytes the session has PUT but the
// service hasn't yet confirmed, discards them once acknowledged, and
// stalls the framer (backpressure) when unacknowledged bytes would exceed
// its capacity. Backpressure is implemented with
// golang.org/x/sync/semaphore.Weighted, generalized from the teacher's
// bounded-goroutine-count pattern in internal/sync/transfer.go (there it
// bounds concurrent transfers; here it bounds unacknowledged bytes).
type uploadRingBuffer struct {
	mu       sync.Mutex
	capacity int64
	sem      *semaphore.Weighted
	segments []bufSegment
	held     int64 // bytes currently acquired from sem
}

type bufSegment struct {
	offset int64
	data   []byte
}

// newUploadRingBuffer builds a ring buffer admitting up to capacity
// unacknowledged bytes at once.
func newUploadRingBuffer(capacity int64) *uploadRingBuffer {
	if capacity < UploadQuantum {
		capacity = UploadQuantum
	}

	return &uploadRingBuffer{
		capacity: capacity,
		sem:      semaphore.NewWeighted(capacity),
	}
}

// waitForHeadroom blocks until at least n bytes of buffer capacity are
// free, or ctx is canceled (spec §4.9: "the driver stalls next() on the
// source until space becomes available").
func (b *uploadRingBuffer) waitForHeadroom(ctx context.Context, n int64) error {
	if n > b.capacity {
		n = b.capacity
	}

	if err := b.sem.Acquire(ctx, n); err != nil {
		return &Error{Kind: KindIo, Message: "waiting for upload buffer headroom", Err: err}
	}

	b.mu.Lock()
	b.held += n
	b.mu.Unlock()

	return nil
}

// push records a buffered-but-unacknowledged segment at offset.
func (b *uploadRingBuffer) push(offset int64, data []byte) {
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cp := append([]byte(nil), data...)
	b.segments = append(b.segments, bufSegment{offset: offset, data: cp})
}

// acknowledge discards segments fully covered by [0, persistedOffset) and
// releases their reserved capacity back to the semaphore.
func (b *uploadRingBuffer) acknowledge(persistedOffset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var kept []bufSegment

	var released int64

	for _, seg := range b.segments {
		segEnd := seg.offset + int64(len(seg.data))
		if segEnd <= persistedOffset {
			released += int64(len(seg.data))
			continue
		}

		if seg.offset < persistedOffset {
			trimmed := persistedOffset - seg.offset
			released += trimmed
			seg.data = seg.data[trimmed:]
			seg.offset = persistedOffset
		}

		kept = append(kept, seg)
	}

	b.segments = kept

	if released > b.held {
		released = b.held
	}

	if released > 0 {
		b.sem.Release(released)
		b.held -= released
	}
}

// unacked reports the total unacknowledged byte count currently held.
func (b *uploadRingBuffer) unacked() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total int64
	for _, seg := range b.segments {
		total += int64(len(seg.data))
	}

	return total
}

// unackedBytes concatenates all currently-held unacknowledged bytes in
// offset order, for resending after a short-persist 308 (spec §4.9: "the
// buffered-upload wrapper services this from its in-memory buffer").
func (b *uploadRingBuffer) unackedBytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []byte
	for _, seg := range b.segments {
		out = append(out, seg.data...)
	}

	return out
}
