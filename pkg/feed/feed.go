// Package feed keeps a live, newest-first view of the item collection.
package feed

import (
	"context"
	"fmt"

	"lostfound/pkg/item"
	"lostfound/pkg/live"
)

// Snapshot is the whole collection as of one delivery, newest first.
type Snapshot []*item.Item

// Query selects the global feed when UserEmail is empty, otherwise the items
// whose author equals UserEmail.
type Query struct {
	UserEmail string
}

type Source interface {
	GetAll(context.Context) ([]*item.Item, error)
	GetUserItems(context.Context, string) ([]*item.Item, error)
}

type Subscriber struct {
	src Source
	bus live.Bus
}

func NewSubscriber(src Source, bus live.Bus) *Subscriber {
	return &Subscriber{
		src: src,
		bus: bus,
	}
}

// Load reads the collection once and returns it reversed.
func (s *Subscriber) Load(ctx context.Context, q Query) (Snapshot, error) {
	var (
		items []*item.Item
		err   error
	)
	if q.UserEmail == "" {
		items, err = s.src.GetAll(ctx)
	} else {
		items, err = s.src.GetUserItems(ctx, q.UserEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("feed: failed loading items: %w", err)
	}
	return Reverse(items), nil
}

// Subscribe delivers a fresh snapshot right away and then after every write
// to the collection. onSnapshot is called from one goroutine at a time.
// The returned func releases the subscription; it is safe to call twice.
func (s *Subscriber) Subscribe(ctx context.Context, q Query, onSnapshot func(Snapshot)) (func(), error) {
	return live.Watch(ctx, s.bus, item.Topic, func(ctx context.Context) error {
		snap, err := s.Load(ctx, q)
		if err != nil {
			return err
		}
		onSnapshot(snap)
		return nil
	})
}

// Reverse returns a reversed copy of items; items itself is untouched.
func Reverse(items []*item.Item) Snapshot {
	res := make(Snapshot, len(items))
	for i, it := range items {
		res[len(items)-1-i] = it
	}
	return res
}
