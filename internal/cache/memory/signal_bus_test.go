package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sb := NewSignalBus()

	markets, err := sb.Subscribe(ctx, "markets")
	require.NoError(t, err)
	all, err := sb.Subscribe(ctx, "*")
	require.NoError(t, err)

	require.NoError(t, sb.Publish(ctx, "markets", []byte("a")))
	require.NoError(t, sb.Publish(ctx, "settlements", []byte("b")))

	assert.Equal(t, []byte("a"), recv(t, markets))
	assert.Equal(t, []byte("a"), recv(t, all))
	assert.Equal(t, []byte("b"), recv(t, all))

	// The exact-name subscriber never sees the other channel.
	select {
	case payload := <-markets:
		t.Fatalf("unexpected message on markets: %q", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSignalBusSubscribeCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sb := NewSignalBus()

	ch, err := sb.Subscribe(ctx, "markets")
	require.NoError(t, err)
	cancel()

	// The subscription channel closes after cancellation.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel never closed")
		}
	}
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	sb := NewSignalBus()

	require.NoError(t, sb.StreamAppend(ctx, "stream:markets", []byte("a")))
	require.NoError(t, sb.StreamAppend(ctx, "stream:markets", []byte("b")))
	require.NoError(t, sb.StreamAppend(ctx, "stream:markets", []byte("c")))

	msgs, err := sb.StreamRead(ctx, "stream:markets", "0", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte("a"), msgs[0].Payload)

	// Reads resume strictly after the given ID.
	tail, err := sb.StreamRead(ctx, "stream:markets", msgs[1].ID, 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, []byte("c"), tail[0].Payload)

	capped, err := sb.StreamRead(ctx, "stream:markets", "0", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	empty, err := sb.StreamRead(ctx, "stream:other", "0", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
