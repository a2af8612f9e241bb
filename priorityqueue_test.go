package volley

import (
	"sync"
	"testing"
	"time"
)

func newTestRequest(priority Priority) *Request {
	return NewRequest(MethodGet, "https://example.com", func(resp *NetworkResponse) (string, *CacheEntry, bool, error) {
		return string(resp.Data), nil, false, nil
	}, nil, nil, WithPriority(priority))
}

func TestPriorityQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := newPriorityQueue()

	low1 := newTestRequest(PriorityLow)
	low1.assignSequence(1)
	high := newTestRequest(PriorityHigh)
	high.assignSequence(2)
	low2 := newTestRequest(PriorityLow)
	low2.assignSequence(3)
	immediate := newTestRequest(PriorityImmediate)
	immediate.assignSequence(4)

	q.Push(low1)
	q.Push(high)
	q.Push(low2)
	q.Push(immediate)

	want := []*Request{immediate, high, low1, low2}
	for i, w := range want {
		got, ok := q.Take()
		if !ok {
			t.Fatalf("item %d: queue closed unexpectedly", i)
		}
		if got != w {
			t.Fatalf("item %d: got sequence %d, want %d", i, got.Sequence(), w.Sequence())
		}
	}
}

func TestPriorityQueueTakeBlocksUntilPush(t *testing.T) {
	q := newPriorityQueue()
	done := make(chan *Request, 1)

	go func() {
		req, ok := q.Take()
		if !ok {
			done <- nil
			return
		}
		done <- req
	}()

	select {
	case <-done:
		t.Fatal("Take returned before any item was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	req := newTestRequest(PriorityNormal)
	req.assignSequence(1)
	q.Push(req)

	select {
	case got := <-done:
		if got != req {
			t.Fatalf("got %v, want %v", got, req)
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not unblock after Push")
	}
}

func TestPriorityQueueCloseWakesBlockedTake(t *testing.T) {
	q := newPriorityQueue()
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Take()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Take returned ok=true after Close with no items")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked Take")
	}

	// Further Take calls on a closed, empty queue return immediately.
	if _, ok := q.Take(); ok {
		t.Fatal("Take on closed queue returned ok=true")
	}
}

func TestPriorityQueueCloseIsIdempotent(t *testing.T) {
	q := newPriorityQueue()
	q.Close()
	q.Close() // must not panic or deadlock
}

func TestPriorityQueueConcurrentPushTake(t *testing.T) {
	q := newPriorityQueue()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			req := newTestRequest(PriorityNormal)
			req.assignSequence(int64(i))
			q.Push(req)
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		req, ok := q.Take()
		if !ok {
			t.Fatalf("unexpected close after %d items", i)
		}
		seen[req.Sequence()] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct items, want %d", len(seen), n)
	}
}
