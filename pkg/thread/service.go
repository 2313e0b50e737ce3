// Package thread adds comments to items and keeps open comment threads in
// sync with the store.
package thread

import (
	"context"
	"fmt"
	"strings"

	"lostfound/pkg/apperror"
	"lostfound/pkg/item"
	"lostfound/pkg/live"
	"lostfound/pkg/logger"
)

type Store interface {
	AddComment(context.Context, item.PostId, *item.Comment) error
	GetComments(context.Context, item.PostId) ([]*item.Comment, error)
}

type Service struct {
	store Store
	bus   live.Bus
}

func NewService(store Store, bus live.Bus) *Service {
	return &Service{
		store: store,
		bus:   bus,
	}
}

// AddComment writes a comment under postId. The comment key is generated
// here so the caller can recognise the comment when the store echoes it back.
// An empty author is stored as item.AnonymousAuthor.
func (s *Service) AddComment(ctx context.Context, postId item.PostId, author, text string) (*item.Comment, error) {
	if strings.TrimSpace(string(postId)) == "" {
		return nil, apperror.ValidationFailed("postId", "no item selected")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment is empty")
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = item.AnonymousAuthor
	}

	c := &item.Comment{
		Id:        item.NewCommentId(),
		UserEmail: author,
		Text:      text,
	}
	if err := s.store.AddComment(ctx, postId, c); err != nil {
		return nil, fmt.Errorf("thread: %w", err)
	}

	for _, topic := range []string{item.CommentsTopic(postId), item.Topic} {
		if err := s.bus.Publish(ctx, topic); err != nil {
			logger.Log(ctx).Warnf("thread: comment on %s written but %s not published: %v", postId, topic, err)
		}
	}
	return c, nil
}

func (s *Service) Comments(ctx context.Context, postId item.PostId) ([]*item.Comment, error) {
	comments, err := s.store.GetComments(ctx, postId)
	if err != nil {
		return nil, fmt.Errorf("thread: %w", err)
	}
	return comments, nil
}

// Watch delivers the normalized comment list of postId now and after every
// new comment, until the returned func is called.
func (s *Service) Watch(ctx context.Context, postId item.PostId, onComments func([]*item.Comment)) (func(), error) {
	return live.Watch(ctx, s.bus, item.CommentsTopic(postId), func(ctx context.Context) error {
		comments, err := s.Comments(ctx, postId)
		if err != nil {
			return err
		}
		onComments(comments)
		return nil
	})
}
