package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBrokerFansOut(t *testing.T) {
	b := NewBroker(4)
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	e := NewEvent(TypeLike, 7)
	e.VideoID = 3
	e.Count = 1
	require.True(t, b.Publish(e))

	for _, ch := range []<-chan Event{a, c} {
		select {
		case got := <-ch:
			require.Equal(t, e, got)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	cancel()
	<-done
	_, open := <-a
	require.False(t, open, "subscriber channels are closed on shutdown")
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := NewBroker(1)
	require.True(t, b.Publish(NewEvent(TypeFollow, 1)))
	require.False(t, b.Publish(NewEvent(TypeFollow, 1)))
}
