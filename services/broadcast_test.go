package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()

	ch1, cancel1 := b.Subscribe("m1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("m1")
	defer cancel2()
	other, cancelOther := b.Subscribe("m2")
	defer cancelOther()

	b.Publish("m1", "match_updated", nil)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "match_updated", ev.Type)
			assert.Equal(t, "m1", ev.MatchID)
		case <-time.After(time.Second):
			t.Fatal("expected event was not delivered")
		}
	}

	select {
	case <-other:
		t.Fatal("event leaked to another match's subscriber")
	default:
	}
}

func TestBroadcasterCancelStopsDelivery(t *testing.T) {
	b := NewBroadcaster()

	ch, cancel := b.Subscribe("m1")
	cancel()

	b.Publish("m1", "match_updated", nil)

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected no event on a cancelled subscription")
	default:
	}
}

func TestBroadcasterSkipsFullBuffers(t *testing.T) {
	b := NewBroadcaster()

	_, cancel := b.Subscribe("m1")
	defer cancel()

	// A consumer that never reads must not block the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("m1", "chat_message", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow consumer")
	}
}
