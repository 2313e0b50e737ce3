// Package composer holds the input of a new item and runs the
// upload-then-write submission.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lostfound/pkg/apperror"
	"lostfound/pkg/item"
	"lostfound/pkg/logger"
	"lostfound/pkg/media"
)

var ErrSubmitting = errors.New("composer: a submission is already in flight")

type Uploader interface {
	Upload(ctx context.Context, h *media.Handle) (string, error)
}

type Writer interface {
	CreateItem(ctx context.Context, f item.Fields, imageURL string, authorEmail string) (item.PostId, error)
}

// Composer is the state of one "post an item" form. It is safe for
// concurrent use; at most one Submit runs at a time.
type Composer struct {
	uploader Uploader
	writer   Writer

	mu         sync.Mutex
	fields     item.Fields
	image      *media.Handle
	submitting bool
}

func New(u Uploader, w Writer) *Composer {
	return &Composer{
		uploader: u,
		writer:   w,
	}
}

func (c *Composer) SetFields(f item.Fields) {
	c.mu.Lock()
	c.fields = f
	c.mu.Unlock()
}

func (c *Composer) Fields() item.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

func (c *Composer) Image() *media.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

func (c *Composer) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// SelectImage asks p for permission and lets the user pick one image,
// replacing any previous selection. Cancelling keeps the previous selection.
func (c *Composer) SelectImage(ctx context.Context, p media.Picker) error {
	granted, err := p.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("composer: permission request failed: %w", err)
	}
	if !granted {
		return media.ErrPermissionDenied
	}

	h, err := p.Pick(ctx)
	if errors.Is(err, media.ErrCancelled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("composer: picking image failed: %w", err)
	}

	c.mu.Lock()
	c.image = h
	c.mu.Unlock()
	return nil
}

func (c *Composer) ClearImage() {
	c.mu.Lock()
	c.image = nil
	c.mu.Unlock()
}

// Submit validates the input, uploads the image if one was picked, then
// writes the item. The input is cleared only after the write succeeded and
// kept as is on any failure.
func (c *Composer) Submit(ctx context.Context, authorEmail string) (item.PostId, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return "", ErrSubmitting
	}
	fields, image := c.fields, c.image
	if err := fields.Validate(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	// nothing is uploaded for a submission the writer would refuse
	if strings.TrimSpace(authorEmail) == "" {
		c.mu.Unlock()
		return "", apperror.Unauthorized("sign in to post an item")
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	imageURL, err := c.uploader.Upload(ctx, image)
	if err != nil {
		logger.Log(ctx).Errorf("composer: image upload failed: %v", err)
		return "", err
	}
	if image != nil && imageURL == "" {
		return "", errors.New("composer: upload returned no url")
	}

	id, err := c.writer.CreateItem(ctx, fields, imageURL, authorEmail)
	if err != nil {
		logger.Log(ctx).Errorf("composer: posting item failed: %v", err)
		return "", err
	}

	c.mu.Lock()
	c.fields = item.Fields{}
	c.image = nil
	c.mu.Unlock()

	logger.Log(ctx).Infof("composer: item %s posted", id)
	return id, nil
}
