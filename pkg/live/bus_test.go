package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryBusCoalesces(t *testing.T) {
	bus := NewMemoryBus()
	events, release := bus.Subscribe("items")
	defer release()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), "items"))
	}

	<-events
	select {
	case <-events:
		t.Fatal("burst was not coalesced")
	default:
	}
}

func TestMemoryBusTopicsAreIndependent(t *testing.T) {
	bus := NewMemoryBus()
	items, releaseItems := bus.Subscribe("items")
	defer releaseItems()
	comments, releaseComments := bus.Subscribe("items/a/comments")
	defer releaseComments()

	require.NoError(t, bus.Publish(context.Background(), "items/a/comments"))

	select {
	case <-items:
		t.Fatal("items subscriber got a comments event")
	default:
	}
	select {
	case <-comments:
	default:
		t.Fatal("comments subscriber got nothing")
	}
}

func TestMemoryBusRelease(t *testing.T) {
	bus := NewMemoryBus()
	events, release := bus.Subscribe("items")
	assert.Equal(t, 1, bus.Subscribers("items"))

	release()
	release()
	assert.Equal(t, 0, bus.Subscribers("items"))

	_, ok := <-events
	assert.False(t, ok)
	assert.NoError(t, bus.Publish(context.Background(), "items"))
}

func TestWatch(t *testing.T) {
	bus := NewMemoryBus()

	var mu sync.Mutex
	calls := 0
	refreshed := make(chan struct{}, 10)
	refresh := func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		refreshed <- struct{}{}
		return nil
	}

	stop, err := Watch(context.Background(), bus, "items", refresh)
	require.NoError(t, err)
	<-refreshed // initial load

	require.NoError(t, bus.Publish(context.Background(), "items"))
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("no refresh after publish")
	}

	stop()
	stop()
	assert.Equal(t, 0, bus.Subscribers("items"))

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestWatchInitialError(t *testing.T) {
	bus := NewMemoryBus()
	loadErr := errors.New("store unavailable")

	stop, err := Watch(context.Background(), bus, "items", func(context.Context) error {
		return loadErr
	})
	assert.ErrorIs(t, err, loadErr)
	assert.Nil(t, stop)
	assert.Equal(t, 0, bus.Subscribers("items"))
}

func TestWatchStopsWithContext(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	stop, err := Watch(ctx, bus, "items", func(context.Context) error { return nil })
	require.NoError(t, err)

	cancel()
	stop()
	assert.Equal(t, 0, bus.Subscribers("items"))
}

func TestMemoryBusPublishAll(t *testing.T) {
	bus := NewMemoryBus()
	items, releaseItems := bus.Subscribe("items")
	defer releaseItems()
	comments, releaseComments := bus.Subscribe("items/a/comments")
	defer releaseComments()

	require.NoError(t, bus.PublishAll(context.Background()))
	for _, ch := range []<-chan struct{}{items, comments} {
		select {
		case <-ch:
		default:
			t.Fatal("subscription was not notified")
		}
	}
}
