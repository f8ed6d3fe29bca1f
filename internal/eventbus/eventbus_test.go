package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe_FIFOOrdering(t *testing.T) {
	bus := New(nil)
	ch := bus.Subscribe("wiki-1")
	defer bus.Unsubscribe("wiki-1", ch)

	for i := 0; i < 5; i++ {
		bus.Publish("wiki-1", Event{Type: "phase_changed", Data: map[string]any{"n": i}})
	}

	for i := 0; i < 5; i++ {
		select {
		case ev := <-ch:
			require.Equal(t, float64(i), toFloat(ev.Data["n"]))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublish_IsolatedPerWikiID(t *testing.T) {
	bus := New(nil)
	chA := bus.Subscribe("wiki-a")
	chB := bus.Subscribe("wiki-b")
	defer bus.Unsubscribe("wiki-a", chA)
	defer bus.Unsubscribe("wiki-b", chB)

	bus.Publish("wiki-a", Event{Type: "job_started"})

	select {
	case ev := <-chA:
		require.Equal(t, "job_started", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("wiki-a subscriber never received its event")
	}

	select {
	case ev := <-chB:
		t.Fatalf("wiki-b subscriber received an event meant for wiki-a: %+v", ev)
	default:
	}
}

func TestPublish_DropsOnFullChannelWithoutBlocking(t *testing.T) {
	bus := New(nil)
	ch := bus.Subscribe("wiki-1")
	defer bus.Unsubscribe("wiki-1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish("wiki-1", Event{Type: "page_completed"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel instead of dropping")
	}
}

func TestUnsubscribe_RemovesAndReclaimsEntry(t *testing.T) {
	bus := New(nil)
	ch := bus.Subscribe("wiki-1")
	bus.Unsubscribe("wiki-1", ch)

	_, ok := bus.subscribers["wiki-1"]
	require.False(t, ok, "subscriber list should be removed once empty")

	// Publishing to a wiki with no subscribers must not panic.
	bus.Publish("wiki-1", Event{Type: "job_completed"})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}
