package web

import "testing"

func TestBroadcaster_NewSubscriberGetsLastValue(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(StatusSnapshot{UptimeSec: 7})

	id, ch := b.Subscribe(1)
	defer b.Unsubscribe(id)
	if got := <-ch; got.UptimeSec != 7 {
		t.Fatalf("uptime=%d want 7", got.UptimeSec)
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe(1)
	for i := 0; i < 10; i++ {
		b.Publish(StatusSnapshot{UptimeSec: int64(i)})
	}
	if got := <-ch; got.UptimeSec != 0 {
		t.Fatalf("uptime=%d want first buffered value 0", got.UptimeSec)
	}
	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after Unsubscribe")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("subscribers=%d want 0", b.Subscribers())
	}
}
