package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lostfound/pkg/apperror"
	"lostfound/pkg/mongodb"
)

const BucketName = "media"

// GridFSStore keeps blobs in a GridFS bucket and hands out URLs under
// <publicURL>/media/.
type GridFSStore struct {
	bucket    mongodb.IMongoBucket
	publicURL string
}

func NewGridFSStore(db *mongo.Database, publicURL string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(BucketName))
	if err != nil {
		return nil, fmt.Errorf("media/gridfs: can't open bucket: %w", err)
	}
	return &GridFSStore{
		bucket:    mongodb.NewBucket(bucket),
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *GridFSStore) Store(ctx context.Context, path string, data []byte) error {
	if err := s.bucket.Upload(ctx, path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("media/gridfs: upload %s: %w", path, err)
	}
	return nil
}

func (s *GridFSStore) URL(ctx context.Context, path string) (string, error) {
	ok, err := s.bucket.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("media/gridfs: find %s: %w", path, err)
	}
	if !ok {
		return "", apperror.NotFound("blob", path)
	}
	return s.publicURL + "/media/" + (&url.URL{Path: path}).EscapedPath(), nil
}

// Open copies the blob into w.
func (s *GridFSStore) Open(ctx context.Context, path string, w io.Writer) error {
	err := s.bucket.Download(ctx, path, w)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return apperror.NotFound("blob", path)
	}
	if err != nil {
		return fmt.Errorf("media/gridfs: download %s: %w", path, err)
	}
	return nil
}
