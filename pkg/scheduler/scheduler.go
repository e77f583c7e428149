package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/smith3v/wx-reminder/pkg/logger"
)

// DefaultGrace is how late a fire may run before it is treated as missed
// and dropped.
const DefaultGrace = time.Minute

// Callback runs when a registration fires. It receives the registration key
// and executes on its own goroutine, never on the scheduling loop.
type Callback func(key string)

type entry struct {
	fireAt time.Time
	fn     Callback
	gen    uint64
}

type item struct {
	key    string
	fireAt time.Time
	gen    uint64
}

type itemHeap []item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)         { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Scheduler keeps a set of keyed one-shot registrations and invokes each
// callback at or after its fire instant. Arm with an existing key fully
// supersedes the previous registration; a superseded or cancelled entry
// never fires.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]entry
	heap    itemHeap
	gen     uint64
	stopped bool

	wake chan struct{}
	done chan struct{}

	grace time.Duration
	now   func() time.Time
}

// New starts the scheduling loop. now may be nil for the wall clock; grace
// <= 0 uses DefaultGrace.
func New(grace time.Duration, now func() time.Time) *Scheduler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		entries: make(map[string]entry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		grace:   grace,
		now:     now,
	}
	go s.run()
	return s
}

// Arm registers or replaces the callback for key.
func (s *Scheduler) Arm(key string, fireAt time.Time, fn Callback) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.entries[key] = entry{fireAt: fireAt, fn: fn, gen: s.gen}
	heap.Push(&s.heap, item{key: key, fireAt: fireAt, gen: s.gen})
	s.mu.Unlock()
	s.kick()
}

// Cancel removes a pending registration. Unknown keys are a no-op.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.kick()
}

// Len reports the number of pending registrations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop shuts the scheduling loop down. Pending registrations are discarded;
// a callback already running completes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.entries = make(map[string]entry)
	s.mu.Unlock()
	close(s.done)
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		// Discard heap heads whose registration was cancelled or replaced.
		for len(s.heap) > 0 {
			top := s.heap[0]
			e, ok := s.entries[top.key]
			if !ok || e.gen != top.gen {
				heap.Pop(&s.heap)
				continue
			}
			break
		}
		if len(s.heap) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		top := s.heap[0]
		now := s.now()
		if !top.fireAt.After(now) {
			heap.Pop(&s.heap)
			e := s.entries[top.key]
			delete(s.entries, top.key)
			s.mu.Unlock()

			if late := now.Sub(top.fireAt); late > s.grace {
				logger.Info("dropping missed timer", "key", top.key, "late", late)
				continue
			}
			go e.fn(top.key)
			continue
		}

		wait := top.fireAt.Sub(now)
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.done:
			timer.Stop()
			return
		}
	}
}
