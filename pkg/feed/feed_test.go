package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lostfound/pkg/item"
	"lostfound/pkg/item/itemtest"
	"lostfound/pkg/live"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func post(t *testing.T, w *item.Writer, text, category, author string) item.PostId {
	t.Helper()
	id, err := w.CreateItem(context.Background(), item.Fields{
		Text:     text,
		Location: "library",
		Color:    "black",
		Category: category,
	}, "", author)
	require.NoError(t, err)
	return id
}

func texts(s []*item.Item) []string {
	res := make([]string, 0, len(s))
	for _, it := range s {
		res = append(res, it.Text)
	}
	return res
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestSubscribeOrder(t *testing.T) {
	ctx := context.Background()
	store := itemtest.NewStore()
	bus := live.NewMemoryBus()
	w := item.NewWriter(store, bus)

	post(t, w, "A", "wallet", "a@x.com")
	post(t, w, "B", "bag", "a@x.com")
	post(t, w, "C", "keys", "b@x.com")

	snaps := make(chan Snapshot, 10)
	unsubscribe, err := NewSubscriber(store, bus).Subscribe(ctx, Query{}, func(s Snapshot) { snaps <- s })
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, []string{"C", "B", "A"}, texts(next(t, snaps)))

	post(t, w, "D", "phone", "a@x.com")
	assert.Equal(t, []string{"D", "C", "B", "A"}, texts(next(t, snaps)))
}

func TestSubscribeUserQuery(t *testing.T) {
	ctx := context.Background()
	store := itemtest.NewStore()
	bus := live.NewMemoryBus()
	w := item.NewWriter(store, bus)

	post(t, w, "A", "wallet", "a@x.com")
	post(t, w, "B", "bag", "b@x.com")
	post(t, w, "C", "keys", "a@x.com")

	snaps := make(chan Snapshot, 10)
	unsubscribe, err := NewSubscriber(store, bus).Subscribe(ctx, Query{UserEmail: "a@x.com"}, func(s Snapshot) { snaps <- s })
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, []string{"C", "A"}, texts(next(t, snaps)))
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := itemtest.NewStore()
	bus := live.NewMemoryBus()

	unsubscribe, err := NewSubscriber(store, bus).Subscribe(ctx, Query{}, func(Snapshot) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(item.Topic))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.Subscribers(item.Topic))
}

func TestSubscribeLoadError(t *testing.T) {
	store := itemtest.NewStore()
	bus := live.NewMemoryBus()
	loadErr := errors.New("permission denied by rules")
	store.SetErr(loadErr)

	_, err := NewSubscriber(store, bus).Subscribe(context.Background(), Query{}, func(Snapshot) {})
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, 0, bus.Subscribers(item.Topic))
}

func TestReverse(t *testing.T) {
	in := []*item.Item{{Text: "A"}, {Text: "B"}, {Text: "C"}}
	out := Reverse(in)
	assert.Equal(t, []string{"C", "B", "A"}, texts(out))
	assert.Equal(t, []string{"A", "B", "C"}, texts(in))
	assert.Empty(t, Reverse(nil))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := itemtest.NewStore()
	w := item.NewWriter(store, live.NewMemoryBus())

	f := item.Fields{Text: "lost wallet", Location: "library", Color: "black", Category: "wallet"}
	id, err := w.CreateItem(ctx, f, "", "a@x.com")
	require.NoError(t, err)

	snap, err := NewSubscriber(store, live.NewMemoryBus()).Load(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, snap, 1)
	got := snap[0]
	assert.Equal(t, id, got.PostId)
	assert.NotEmpty(t, got.PostId)
	assert.Equal(t, f, item.Fields{Text: got.Text, Location: got.Location, Color: got.Color, Category: got.Category})
}
