package server

import (
	"encoding/json"
	"testing"
)

func TestBrokerCloseReachesSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")

	// Fill the buffer without reading.
	for range cap(ch) + 4 {
		b.Publish("s1", PlayUpdate{})
	}
	b.Close("s1", PlayUpdate{Closed: true})

	if n := b.Subscribers("s1"); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}

	var last PlayUpdate
	for len(ch) > 0 {
		if err := json.Unmarshal(<-ch, &last); err != nil {
			t.Fatalf("decoding update: %v", err)
		}
	}
	if !last.Closed {
		t.Error("final update was dropped")
	}

	// Unsubscribing after close is harmless.
	b.Unsubscribe("s1", ch)
}

func TestBrokerPublishFansOut(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("s1")
	c := b.Subscribe("s1")
	other := b.Subscribe("s2")

	b.Publish("s1", PlayUpdate{})

	if len(a) != 1 || len(c) != 1 {
		t.Errorf("subscribers got %d and %d updates, want 1 each", len(a), len(c))
	}
	if len(other) != 0 {
		t.Errorf("other session got %d updates", len(other))
	}
}
