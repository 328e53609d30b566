// Package eventbus delivers per-run scheduler events to live subscribers.
//
// Delivery is best-effort, at-most-once, in emission order per run. A slow
// subscriber may lose intermediate events once its backlog fills, but the
// terminal event is always delivered before its channel closes. Finished
// topics are evicted after a retention window so the bus does not accumulate
// an entry per completed run.
package eventbus

import (
	"log"
	"sync"
	"time"
)

// EventType identifies an event on the bus.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventProbeResult    EventType = "probe_result"
	EventServerProgress EventType = "server_progress"
	EventRunComplete    EventType = "run_complete"
	EventRunCancelled   EventType = "run_cancelled"
	EventRunError       EventType = "run_error"
)

// Terminal reports whether the event type ends a run's stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventRunComplete, EventRunCancelled, EventRunError:
		return true
	}
	return false
}

// Event is one bus message. Payload is the wire-shaped body for the type.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// DefaultBacklog is the per-subscriber buffered-channel capacity.
const DefaultBacklog = 256

// DefaultRetention is how long a finished run's topic stays resident so late
// subscribers still observe the closed-channel signal.
const DefaultRetention = 5 * time.Minute

// subscriber is one registered listener for a run.
type subscriber struct {
	ch       chan Event
	closed   bool
	dropped  int
	terminal *Event // reserved slot so the terminal event survives a full backlog
}

type runTopic struct {
	subs     map[*subscriber]struct{}
	finished bool
}

// Bus is the per-run pub/sub fan-out.
type Bus struct {
	mu        sync.Mutex
	backlog   int
	retention time.Duration
	topics    map[string]*runTopic
}

// New creates a Bus with the given per-subscriber backlog capacity and
// finished-topic retention window.
func New(backlog int, retention time.Duration) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Bus{backlog: backlog, retention: retention, topics: make(map[string]*runTopic)}
}

// Subscribe registers a listener for runID and returns its event channel plus
// an unsubscribe function. Subscribers joining after the run finished receive
// an already-closed channel; they reconcile via the store instead. There is
// no replay of past events.
func (b *Bus) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, b.backlog)}

	topic := b.topics[runID]
	if topic == nil {
		topic = &runTopic{subs: make(map[*subscriber]struct{})}
		b.topics[runID] = topic
	}
	if topic.finished {
		close(sub.ch)
		sub.closed = true
		return sub.ch, func() {}
	}
	topic.subs[sub] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := topic.subs[sub]; !ok {
			return
		}
		delete(topic.subs, sub)
		if !sub.closed {
			close(sub.ch)
			sub.closed = true
		}
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of runID without blocking. When a
// subscriber's backlog is full, intermediate events are dropped; a terminal
// event is parked in a reserved slot and flushed by a drainer goroutine so it
// is never lost.
func (b *Bus) Publish(runID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic := b.topics[runID]
	if topic == nil {
		if ev.Type.Terminal() {
			// Remember that the run finished so late subscribers get a closed
			// channel instead of waiting forever.
			topic = &runTopic{subs: make(map[*subscriber]struct{}), finished: true}
			b.topics[runID] = topic
			b.scheduleEviction(runID, topic)
		}
		return
	}

	for sub := range topic.subs {
		b.deliver(sub, ev)
	}

	if ev.Type.Terminal() {
		topic.finished = true
		for sub := range topic.subs {
			b.finish(runID, sub)
		}
		topic.subs = make(map[*subscriber]struct{})
		b.scheduleEviction(runID, topic)
	}
}

// scheduleEviction drops a finished topic once the retention window elapses.
// The pointer comparison guards against deleting a fresh topic that reused
// the run ID after an explicit Forget. Callers hold b.mu.
func (b *Bus) scheduleEviction(runID string, topic *runTopic) {
	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.topics[runID] == topic {
			delete(b.topics, runID)
		}
	})
}

// deliver attempts a non-blocking send. Terminal events that cannot be queued
// are parked on the subscriber instead of dropped.
func (b *Bus) deliver(sub *subscriber, ev Event) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
	default:
		if ev.Type.Terminal() {
			evCopy := ev
			sub.terminal = &evCopy
			return
		}
		sub.dropped++
	}
}

// finish closes a subscriber's channel, draining its backlog first when a
// terminal event had to be parked.
func (b *Bus) finish(runID string, sub *subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	if sub.dropped > 0 {
		log.Printf("[eventbus] run %s: dropped %d events for slow subscriber", runID, sub.dropped)
	}
	if sub.terminal == nil {
		close(sub.ch)
		return
	}
	// The backlog is full and the subscriber is not keeping up. Drain on a
	// side goroutine so the scheduler never blocks behind it.
	terminal := *sub.terminal
	ch := sub.ch
	go func() {
		for {
			select {
			case ch <- terminal:
				close(ch)
				return
			case <-ch:
				// made room by discarding the oldest backlog entry
			}
		}
	}()
}

// Forget drops all bookkeeping for a finished run. Safe to call once no new
// subscribers are expected; late subscribers will simply see a fresh topic.
func (b *Bus) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	topic := b.topics[runID]
	if topic == nil {
		return
	}
	for sub := range topic.subs {
		if !sub.closed {
			close(sub.ch)
			sub.closed = true
		}
	}
	delete(b.topics, runID)
}
