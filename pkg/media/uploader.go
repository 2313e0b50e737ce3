package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
)

type BlobStore interface {
	Store(ctx context.Context, path string, data []byte) error
	// URL resolves a stored path; it is a separate call from Store.
	URL(ctx context.Context, path string) (string, error)
}

// Opener dereferences a URI to the bytes it points at.
type Opener func(ctx context.Context, uri string) ([]byte, error)

type Uploader struct {
	blobs BlobStore
	open  Opener
}

// NewUploader builds an uploader. open may be nil, in which case handles
// without inline data are rejected with ErrNoImageData.
func NewUploader(blobs BlobStore, open Opener) *Uploader {
	return &Uploader{
		blobs: blobs,
		open:  open,
	}
}

// Upload stores the picked image under images/ and returns its URL. A nil
// handle means no image was picked and yields "" without any remote call.
// Errors are returned as is; nothing is retried or cleaned up.
func (u *Uploader) Upload(ctx context.Context, h *Handle) (string, error) {
	if h == nil {
		return "", nil
	}

	data := h.Data
	if len(data) == 0 {
		if u.open == nil {
			return "", ErrNoImageData
		}
		var err error
		data, err = u.open(ctx, h.URI)
		if err != nil {
			return "", fmt.Errorf("media/uploader: can't read %s: %w", h.URI, err)
		}
	}
	if len(data) == 0 {
		return "", ErrNoImageData
	}

	// xid prefix keeps two pictures with the same file name apart
	p := Namespace + xid.New().String() + "-" + h.Name()
	if err := u.blobs.Store(ctx, p, data); err != nil {
		return "", fmt.Errorf("media/uploader: store failed: %w", err)
	}

	url, err := u.blobs.URL(ctx, p)
	if err != nil {
		return "", fmt.Errorf("media/uploader: can't resolve url: %w", err)
	}
	if url == "" {
		return "", errors.New("media/uploader: blob store returned an empty url")
	}
	return url, nil
}
