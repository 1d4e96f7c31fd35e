package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"erdemo.org/responder-simulator/internal/logging"
)

// Policy decides what Emit does when the dispatcher buffer is full.
type Policy string

const (
	// PolicyBlock waits for room in the buffer or for the caller's context.
	PolicyBlock Policy = "block"
	// PolicyDrop discards the update and counts it.
	PolicyDrop Policy = "drop"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyBlock, PolicyDrop:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown dispatcher policy %q", s)
}

// Dispatcher fans updates from many tick chains into one ordered stream. A
// single goroutine drains the buffer and hands each update to every
// publisher in turn, so updates for a responder are published in the order
// they were emitted.
type Dispatcher struct {
	updates    chan ResponderLocationUpdate
	policy     Policy
	publishers []Publisher
	logger     *slog.Logger

	dropped   atomic.Uint64
	published atomic.Uint64

	// closeMu orders every send on updates before Close, so nothing lands in
	// the buffer after the consumer drained it.
	closeMu sync.RWMutex
	closed  bool

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewDispatcher starts the consumer goroutine. Call Close to stop it.
func NewDispatcher(buffer int, policy Policy, logger *slog.Logger, publishers ...Publisher) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if policy == "" {
		policy = PolicyBlock
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		updates:      make(chan ResponderLocationUpdate, buffer),
		policy:       policy,
		publishers:   publishers,
		logger:       logger.With(slog.String("component", "event_dispatcher")),
		shutdownChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues an update. With PolicyDrop it never blocks and returns nil even
// when the update was dropped.
func (d *Dispatcher) Emit(ctx context.Context, u ResponderLocationUpdate) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	if d.policy == PolicyDrop {
		select {
		case d.updates <- u:
		default:
			n := d.dropped.Add(1)
			d.logger.Warn("dispatcher buffer full, update dropped",
				slog.String("mission_id", u.MissionID),
				slog.Uint64("dropped_total", n))
		}
		return nil
	}

	select {
	case d.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case u := <-d.updates:
			d.publish(u)
		case <-d.shutdownChan:
			for {
				select {
				case u := <-d.updates:
					d.publish(u)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(u ResponderLocationUpdate) {
	ctx := context.Background()
	for _, p := range d.publishers {
		if err := p.Publish(ctx, u); err != nil {
			logging.LogError(d.logger, "Failed to publish responder location update", err,
				slog.String("key", u.PartitionKey()),
				slog.String("mission_id", u.MissionID))
		}
	}
	d.published.Add(1)
}

// Dropped returns the number of updates discarded under PolicyDrop.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Published returns the number of updates handed to the publishers.
func (d *Dispatcher) Published() uint64 {
	return d.published.Load()
}

// Close stops accepting updates, publishes what is buffered and waits for
// the consumer to exit. Emits already in progress finish first.
func (d *Dispatcher) Close() {
	d.shutdownOnce.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		close(d.shutdownChan)
		d.closeMu.Unlock()
		d.wg.Wait()
	})
}
