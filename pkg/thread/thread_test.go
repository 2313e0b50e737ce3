package thread

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lostfound/pkg/apperror"
	"lostfound/pkg/item"
	"lostfound/pkg/item/itemtest"
	"lostfound/pkg/live"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setup(t *testing.T) (*Service, *itemtest.Store, *live.MemoryBus, item.PostId) {
	t.Helper()
	store := itemtest.NewStore()
	bus := live.NewMemoryBus()
	id, err := item.NewWriter(store, bus).CreateItem(context.Background(), item.Fields{
		Text: "lost wallet", Location: "library", Color: "black", Category: "wallet",
	}, "", "owner@x.com")
	require.NoError(t, err)
	return NewService(store, bus), store, bus, id
}

func TestAddCommentGuards(t *testing.T) {
	ctx := context.Background()
	svc, store, _, id := setup(t)
	before := store.WriteCount()

	_, err := svc.AddComment(ctx, id, "user@x.com", "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.AddComment(ctx, "", "user@x.com", "found it!")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Equal(t, before, store.WriteCount())
}

func TestAddCommentAnonymous(t *testing.T) {
	ctx := context.Background()
	svc, _, _, id := setup(t)

	c, err := svc.AddComment(ctx, id, "", " found it! ")
	require.NoError(t, err)
	assert.Equal(t, item.AnonymousAuthor, c.UserEmail)
	assert.Equal(t, "found it!", c.Text)
	assert.NotEmpty(t, c.Id)

	comments, err := svc.Comments(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []*item.Comment{c}, comments)
}

func TestAddCommentUnknownItem(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.AddComment(context.Background(), "nope", "user@x.com", "found it!")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAddCommentNotifiesFeed(t *testing.T) {
	svc, _, bus, id := setup(t)
	feedEvents, release := bus.Subscribe(item.Topic)
	defer release()

	_, err := svc.AddComment(context.Background(), id, "user@x.com", "found it!")
	require.NoError(t, err)

	select {
	case <-feedEvents:
	case <-time.After(time.Second):
		t.Fatal("feed topic not notified")
	}
}

func TestThreadCommentListedOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, bus, id := setup(t)

	changes := make(chan []*item.Comment, 10)
	th, err := Open(ctx, svc, id, func(c []*item.Comment) { changes <- c })
	require.NoError(t, err)
	defer th.Close()
	assert.Empty(t, <-changes)

	c, err := th.Add(ctx, "user@x.com", "found it!")
	require.NoError(t, err)

	// the local append and the live delivery race; every state lists c once
	select {
	case got := <-changes:
		assert.Equal(t, []*item.Comment{c}, got)
	case <-time.After(time.Second):
		t.Fatal("thread did not change")
	}
	select {
	case got := <-changes:
		assert.Equal(t, []*item.Comment{c}, got)
	case <-time.After(200 * time.Millisecond):
	}

	require.Len(t, th.Comments(), 1)
	assert.Equal(t, "user@x.com", th.Comments()[0].UserEmail)
	assert.Equal(t, "found it!", th.Comments()[0].Text)

	th.Close()
	assert.Equal(t, 0, bus.Subscribers(item.CommentsTopic(id)))
}

func TestThreadApply(t *testing.T) {
	th := &Thread{comments: []*item.Comment{}}

	mine := &item.Comment{Id: "c2", UserEmail: "me@x.com", Text: "mine"}
	th.Append(mine)
	th.Append(mine)
	assert.Len(t, th.Comments(), 1)

	// delivery before the store has our comment keeps it at the end
	other := &item.Comment{Id: "c1", UserEmail: "other@x.com", Text: "seen it"}
	th.Apply([]*item.Comment{other})
	assert.Equal(t, []*item.Comment{other, mine}, th.Comments())

	// echo of our comment replaces the optimistic copy
	echoed := &item.Comment{Id: "c2", UserEmail: "me@x.com", Text: "mine"}
	th.Apply([]*item.Comment{other, echoed})
	assert.Equal(t, []*item.Comment{other, echoed}, th.Comments())
	assert.Empty(t, th.pending)

	th.Apply([]*item.Comment{other, echoed})
	assert.Len(t, th.Comments(), 2)
}

func TestThreadChangesInOrder(t *testing.T) {
	var lens []int
	th := &Thread{comments: []*item.Comment{}}
	// onChange runs serialized, lens needs no lock
	th.onChange = func(cs []*item.Comment) { lens = append(lens, len(cs)) }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th.Append(&item.Comment{Id: item.CommentId(fmt.Sprintf("c%02d", i)), Text: "found it!"})
		}(i)
	}
	wg.Wait()

	require.NotEmpty(t, lens)
	for i := 1; i < len(lens); i++ {
		assert.Greater(t, lens[i], lens[i-1], "a change older than the one before it was delivered")
	}
	assert.Equal(t, 50, lens[len(lens)-1])
}
