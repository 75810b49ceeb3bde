package gateway

import "container/heap"

// pendingFrame is one numbered event frame awaiting release.
type pendingFrame struct {
	sn      uint64
	payload []byte
}

// frameHeap is a min-heap of pendingFrame ordered by sn, grounded in
// original_source/src/network_runtime.rs's
// BinaryHeap<Reverse<KookWSFrame<Value>>> with capacity 64.
type frameHeap []pendingFrame

func (h frameHeap) Len() int            { return len(h) }
func (h frameHeap) Less(i, j int) bool  { return h[i].sn < h[j].sn }
func (h frameHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frameHeap) Push(x any)         { *h = append(*h, x.(pendingFrame)) }
func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// OrderingBuffer is the Event Ordering Buffer (C6): a gap-buffer of
// numbered event frames that releases them strictly in sn order. It is not
// safe for concurrent use; the session machine is its sole owner (§5).
type OrderingBuffer struct {
	heap      frameHeap
	currentSN uint64
}

// NewOrderingBuffer creates a buffer seeded at the given current sn (the
// last sn released before this point, e.g. from a resumed session record).
func NewOrderingBuffer(currentSN uint64) *OrderingBuffer {
	return &OrderingBuffer{currentSN: currentSN}
}

// CurrentSN returns the highest sn released so far.
func (b *OrderingBuffer) CurrentSN() uint64 {
	return b.currentSN
}

// Reset clears the buffer and resets currentSN to 0, per the Reconnect
// transition in §4.5.
func (b *OrderingBuffer) Reset() {
	b.heap = nil
	b.currentSN = 0
}

// Accept ingests one inbound numbered frame and returns every frame that
// can now be released strictly in order (possibly none, possibly several
// if this fills a gap). A frame whose sn is less than or equal to
// currentSN is dropped as a duplicate.
func (b *OrderingBuffer) Accept(sn uint64, payload []byte) [][]byte {
	if sn <= b.currentSN {
		return nil
	}

	if b.heap == nil {
		b.heap = frameHeap{}
	}
	heap.Push(&b.heap, pendingFrame{sn: sn, payload: payload})

	var released [][]byte
	for len(b.heap) > 0 && b.heap[0].sn == b.currentSN+1 {
		next := heap.Pop(&b.heap).(pendingFrame)
		released = append(released, next.payload)
		b.currentSN = next.sn
	}
	return released
}
