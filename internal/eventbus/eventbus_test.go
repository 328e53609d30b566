package eventbus

import (
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for channel close; got %d events", len(out))
		}
	}
}

func TestPublish_OrderPreserved(t *testing.T) {
	bus := New(16, time.Minute)
	ch, cancel := bus.Subscribe("r1")
	defer cancel()

	bus.Publish("r1", Event{Type: EventRunStarted})
	bus.Publish("r1", Event{Type: EventProbeResult, Payload: 1})
	bus.Publish("r1", Event{Type: EventProbeResult, Payload: 2})
	bus.Publish("r1", Event{Type: EventRunComplete})

	events := collect(t, ch)
	want := []EventType{EventRunStarted, EventProbeResult, EventProbeResult, EventRunComplete}
	if len(events) != len(want) {
		t.Fatalf("event count: got %d, want %d", len(events), len(want))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Fatalf("event %d: got %s, want %s", i, events[i].Type, typ)
		}
	}
}

func TestPublish_TerminalClosesChannel(t *testing.T) {
	bus := New(16, time.Minute)
	ch, _ := bus.Subscribe("r1")

	bus.Publish("r1", Event{Type: EventRunCancelled})

	events := collect(t, ch)
	if len(events) != 1 || events[0].Type != EventRunCancelled {
		t.Fatalf("events: got %+v", events)
	}
}

func TestPublish_SlowSubscriberStillGetsTerminal(t *testing.T) {
	bus := New(2, time.Minute)
	ch, _ := bus.Subscribe("r1")

	// Nobody reads: backlog (2) fills, later probe events drop.
	for i := 0; i < 10; i++ {
		bus.Publish("r1", Event{Type: EventProbeResult, Payload: i})
	}
	bus.Publish("r1", Event{Type: EventRunComplete})

	events := collect(t, ch)
	if len(events) == 0 {
		t.Fatalf("no events delivered")
	}
	last := events[len(events)-1]
	if last.Type != EventRunComplete {
		t.Fatalf("terminal event: got %s, want run_complete", last.Type)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type.Terminal() {
			t.Fatalf("terminal event delivered before the end: %+v", events)
		}
	}
}

func TestSubscribe_AfterFinishGetsClosedChannel(t *testing.T) {
	bus := New(16, time.Minute)
	bus.Publish("r1", Event{Type: EventRunComplete})

	ch, cancel := bus.Subscribe("r1")
	defer cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got an event")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed for late subscriber")
	}
}

func TestFinishedTopicEvicted(t *testing.T) {
	bus := New(16, 20*time.Millisecond)
	ch, _ := bus.Subscribe("r1")
	bus.Publish("r1", Event{Type: EventRunComplete})
	collect(t, ch)

	// Inside the retention window late subscribers still see the finished
	// marker as an immediately-closed channel.
	late, _ := bus.Subscribe("r1")
	if _, ok := <-late; ok {
		t.Fatalf("expected closed channel inside the retention window")
	}

	// After the window the topic is gone: subscribing yields a live channel.
	deadline := time.After(2 * time.Second)
	for {
		ch, cancel := bus.Subscribe("r1")
		closed := false
		select {
		case <-ch:
			closed = true
		default:
		}
		cancel()
		if !closed {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("finished topic never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublish_IndependentRuns(t *testing.T) {
	bus := New(16, time.Minute)
	ch1, _ := bus.Subscribe("r1")
	ch2, _ := bus.Subscribe("r2")

	bus.Publish("r1", Event{Type: EventProbeResult})
	bus.Publish("r1", Event{Type: EventRunComplete})
	bus.Publish("r2", Event{Type: EventRunCancelled})

	e1 := collect(t, ch1)
	e2 := collect(t, ch2)
	if len(e1) != 2 || e1[1].Type != EventRunComplete {
		t.Fatalf("run r1 events: %+v", e1)
	}
	if len(e2) != 1 || e2[0].Type != EventRunCancelled {
		t.Fatalf("run r2 events: %+v", e2)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := New(16, time.Minute)
	ch, cancel := bus.Subscribe("r1")
	cancel()

	bus.Publish("r1", Event{Type: EventProbeResult})

	if _, ok := <-ch; ok {
		t.Fatalf("received event after unsubscribe")
	}
}
