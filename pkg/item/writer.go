package item

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lostfound/pkg/apperror"
	"lostfound/pkg/live"
	"lostfound/pkg/logger"
)

type store interface {
	NewId() PostId
	Add(context.Context, *Item) (PostId, error)
}

// Writer creates items. It is the only place items are written.
type Writer struct {
	store store
	bus   live.Bus
	now   func() time.Time
}

func NewWriter(s store, bus live.Bus) *Writer {
	return &Writer{
		store: s,
		bus:   bus,
		now:   time.Now,
	}
}

// CreateItem validates the fields, takes a fresh id from the store and
// writes the item with that id embedded. imageURL is empty when the item has
// no image.
func (w *Writer) CreateItem(ctx context.Context, f Fields, imageURL string, authorEmail string) (PostId, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	authorEmail = strings.TrimSpace(authorEmail)
	if authorEmail == "" {
		return "", apperror.Unauthorized("sign in to post an item")
	}

	f = f.Trimmed()
	it := &Item{
		PostId:    w.store.NewId(),
		Text:      f.Text,
		Image:     imageURL,
		Location:  f.Location,
		Color:     f.Color,
		Category:  f.Category,
		Timestamp: w.now().UnixMilli(),
		UserEmail: authorEmail,
	}

	id, err := w.store.Add(ctx, it)
	if err != nil {
		return "", fmt.Errorf("item/writer: %w", err)
	}

	if err := w.bus.Publish(ctx, Topic); err != nil {
		logger.Log(ctx).Warnf("item/writer: item %s written but change not published: %v", id, err)
	}
	return id, nil
}
