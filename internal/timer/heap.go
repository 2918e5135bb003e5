// Package timer implements C9 (the global timer min-heap) and C11 (the
// single dedicated event-loop thread that drains it).
package timer

import (
	"container/heap"
	"time"
)

// entry is one scheduled timeout or interval. seq breaks ties between
// entries with identical expiry in insertion order, per spec.md §5 ("Timer
// callbacks fire in non-decreasing expiry order, with ties broken by
// insertion order").
type entry struct {
	id          int64
	expiry      time.Time
	interval    time.Duration // 0 for a one-shot timeout
	goroutineID uint64
	callback    func()
	seq         uint64
	index       int // maintained by container/heap
}

// entryHeap implements heap.Interface, grounded in
// 44-mempool-in-memory/exercise/solution.go's TxHeap shape: a plain slice of
// pointers with Less breaking ties on a secondary field.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].expiry.Equal(h[j].expiry) {
		return h[i].expiry.Before(h[j].expiry)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

var _ = heap.Interface(&entryHeap{})
