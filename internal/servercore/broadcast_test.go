package servercore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastBackpressureDropsOldest(t *testing.T) {
	// Property 8: a subscriber that stalls behind a capacity-2 channel
	// sees 3 sends; its next recv is strictly newer than the first send,
	// and the first send is dropped.
	b := newBroadcaster[int](2)
	ch, cancel := b.subscribe()
	defer cancel()

	b.send(1)
	b.send(2)
	b.send(3)

	first := <-ch
	require.Greater(t, first, 1, "first send must have been dropped")

	second := <-ch
	require.Greater(t, second, first)

	select {
	case v := <-ch:
		t.Fatalf("unexpected third buffered value: %d", v)
	default:
	}
}

func TestBroadcastFansOutToEverySubscriber(t *testing.T) {
	b := newBroadcaster[string](4)
	chA, cancelA := b.subscribe()
	defer cancelA()
	chB, cancelB := b.subscribe()
	defer cancelB()

	require.Equal(t, 2, b.subscriberCount())
	b.send("hello")

	require.Equal(t, "hello", <-chA)
	require.Equal(t, "hello", <-chB)
}

func TestBroadcastCancelClosesChannel(t *testing.T) {
	b := newBroadcaster[int](1)
	ch, cancel := b.subscribe()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, b.subscriberCount())
}
