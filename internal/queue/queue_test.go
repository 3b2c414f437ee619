package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func ids(items []testItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueue_New(t *testing.T) {
	q := New[testItem](0)
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushUnbounded(t *testing.T) {
	q := New[testItem](0)

	if dropped := q.Push(testItem{ID: 1, Name: "first"}); dropped != 0 {
		t.Errorf("expected nothing dropped, got %d", dropped)
	}
	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_PushBoundedDropsOldest(t *testing.T) {
	q := New[testItem](3)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	if dropped := q.Push(testItem{ID: 4}, testItem{ID: 5}); dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
	if got := ids(q.Drain(0)); !equalIDs(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if q.Dropped() != 2 {
		t.Errorf("expected lifetime drops 2, got %d", q.Dropped())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[testItem](0)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	first := q.Drain(2)
	if got := ids(first); !equalIDs(got, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 left, got %d", q.Len())
	}

	// later pushes must not alias the drained batch
	q.Push(testItem{ID: 9})
	if first[0].ID != 1 {
		t.Errorf("drained batch was modified: %v", ids(first))
	}

	rest := q.Drain(0)
	if got := ids(rest); !equalIDs(got, []int{3, 9}) {
		t.Errorf("expected [3 9], got %v", got)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
	if len(q.Drain(5)) != 0 {
		t.Error("expected empty drain")
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[testItem](0)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	batch := q.Drain(2)
	q.Push(testItem{ID: 4})
	q.Requeue(batch...)

	if got := ids(q.Drain(0)); !equalIDs(got, []int{1, 2, 3, 4}) {
		t.Errorf("expected [1 2 3 4], got %v", got)
	}
}

func TestQueue_RequeueBounded(t *testing.T) {
	q := New[testItem](2)
	q.Push(testItem{ID: 3})
	q.Requeue(testItem{ID: 1}, testItem{ID: 2})

	if got := ids(q.Drain(0)); !equalIDs(got, []int{2, 3}) {
		t.Errorf("expected [2 3], got %v", got)
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem](0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	var mu sync.Mutex
	total := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(q.Drain(10))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 100 {
		t.Errorf("expected 100 drained, got %d", total)
	}
	if !q.Empty() {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}
