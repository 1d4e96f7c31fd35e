package simulator

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"erdemo.org/responder-simulator/internal/logging"
)

// TickFunc runs one advancement for a mission key.
type TickFunc func(ctx context.Context, key string)

type entry struct {
	key   string
	due   time.Time
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
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

// Scheduler runs delayed ticks. A single timer goroutine watches a min-heap
// of due times and hands due keys to a fixed pool of workers. Each key has at
// most one pending tick; scheduling a pending key keeps the earlier due time.
type Scheduler struct {
	mu      sync.Mutex
	queue   entryHeap
	pending map[string]*entry

	wake    chan struct{}
	work    chan string
	tick    TickFunc
	workers int
	logger  *slog.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewScheduler starts the timer goroutine and the workers.
func NewScheduler(workers int, tick TickFunc, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		pending:      make(map[string]*entry),
		wake:         make(chan struct{}, 1),
		work:         make(chan string, workers),
		tick:         tick,
		workers:      workers,
		logger:       logger.With(slog.String("component", "scheduler")),
		ctx:          ctx,
		cancel:       cancel,
		shutdownChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Schedule arranges for key to tick after delay. It returns false once the
// scheduler is shut down.
func (s *Scheduler) Schedule(key string, delay time.Duration) bool {
	select {
	case <-s.shutdownChan:
		return false
	default:
	}

	due := time.Now().Add(delay)

	s.mu.Lock()
	if e, ok := s.pending[key]; ok {
		if due.Before(e.due) {
			e.due = due
			heap.Fix(&s.queue, e.index)
		}
	} else {
		e := &entry{key: key, due: due}
		heap.Push(&s.queue, e)
		s.pending[key] = e
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Cancel drops the pending tick of key, if any.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[key]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.pending, key)
	return true
}

// Clear drops every pending tick and returns how many there were.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = nil
	s.pending = make(map[string]*entry)
	return n
}

// Pending returns the number of keys waiting for their tick.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Due returns when key is next going to tick.
func (s *Scheduler) Due(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// popDue removes all entries due at now and returns their keys together with
// the wait until the next entry, or -1 when the heap is empty.
func (s *Scheduler) popDue(now time.Time) ([]string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []string
	for len(s.queue) > 0 {
		next := s.queue[0]
		if next.due.After(now) {
			return ready, next.due.Sub(now)
		}
		heap.Pop(&s.queue)
		delete(s.pending, next.key)
		ready = append(ready, next.key)
	}
	return ready, -1
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		ready, wait := s.popDue(time.Now())
		for _, key := range ready {
			select {
			case s.work <- key:
			case <-s.shutdownChan:
				return
			}
		}
		if len(ready) > 0 {
			continue
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-timerC:
		case <-s.wake:
		case <-s.shutdownChan:
			if timer != nil {
				timer.Stop()
			}
			return
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case key := <-s.work:
			s.runTick(key)
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Scheduler) runTick(key string) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(s.logger, "Tick panicked", fmt.Errorf("%v", r), slog.String("key", key))
		}
	}()
	s.tick(s.ctx, key)
}

// Shutdown stops the timer and the workers and waits for running ticks to
// finish. Pending ticks are discarded.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.cancel()
		s.wg.Wait()
	})
}
