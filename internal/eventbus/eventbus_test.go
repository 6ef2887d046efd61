package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := New()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish("one")
	b.Publish("two")

	for _, sub := range []<-chan Event{a, c} {
		assert.Equal(t, Event("one"), <-sub)
		assert.Equal(t, Event("two"), <-sub)
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)

	b.Publish(1)
	b.Publish(2) // buffer full, dropped

	assert.Equal(t, Event(1), <-sub)
	select {
	case e := <-sub:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	b.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)

	// publishing after unsubscribe must not panic
	b.Publish("late")
}

func TestBusClose(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	b.Close()

	_, open := <-sub
	require.False(t, open)

	b.Publish("after close")
	b.Close() // idempotent

	// subscribing after close yields a closed channel
	late := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
