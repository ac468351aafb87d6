package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	defer unsub()

	b.Publish(Event{Kind: "store.jobs.updated", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "store.jobs.updated" {
			t.Errorf("got kind %q, want store.jobs.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("action.", 10)
	defer unsub()

	b.Publish(Event{Kind: "store.jobs.updated"})
	b.Publish(Event{Kind: "action.succeeded"})

	select {
	case evt := <-ch:
		if evt.Kind != "action.succeeded" {
			t.Errorf("got kind %q, want action.succeeded", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	unsub()

	b.Publish(Event{Kind: "store.jobs.updated"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("store.", 1)
	unsub()
	unsub()
}

func TestEmitStoreKind(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(StoreNamespace("jobs"), 4)
	defer unsub()

	b.Emit(StoreKind("shifts", StoreUpdated), nil)
	b.Emit(StoreKind("jobs", StoreReset), 3)

	select {
	case evt := <-ch:
		if evt.Kind != "store.jobs.reset" {
			t.Errorf("got kind %q, want store.jobs.reset", evt.Kind)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit should stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}
