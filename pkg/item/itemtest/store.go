// Package itemtest provides an in-memory item store for tests.
package itemtest

import (
	"context"
	"fmt"
	"sync"

	"lostfound/pkg/apperror"
	"lostfound/pkg/item"
)

type Store struct {
	mu       sync.Mutex
	seq      int
	items    []*item.Item
	comments map[item.PostId][]*item.Comment

	// Err, when set, is returned by every read and write.
	Err error
	// Writes counts successful Add and AddComment calls.
	Writes int
}

func NewStore() *Store {
	return &Store{comments: make(map[item.PostId][]*item.Comment)}
}

func (s *Store) NewId() item.PostId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return item.PostId(fmt.Sprintf("p%04d", s.seq))
}

func (s *Store) Add(_ context.Context, it *item.Item) (item.PostId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	cp := *it
	cp.Comments = nil
	s.items = append(s.items, &cp)
	s.Writes++
	return it.PostId, nil
}

func (s *Store) GetById(_ context.Context, id item.PostId) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, it := range s.items {
		if it.PostId == id {
			return s.copyLocked(it), nil
		}
	}
	return nil, apperror.NotFound("item", string(id))
}

func (s *Store) GetAll(_ context.Context) ([]*item.Item, error) {
	return s.filter(func(*item.Item) bool { return true })
}

func (s *Store) GetUserItems(_ context.Context, email string) ([]*item.Item, error) {
	return s.filter(func(it *item.Item) bool { return it.UserEmail == email })
}

func (s *Store) AddComment(_ context.Context, postId item.PostId, c *item.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, it := range s.items {
		if it.PostId == postId {
			cp := *c
			s.comments[postId] = append(s.comments[postId], &cp)
			s.Writes++
			return nil
		}
	}
	return apperror.NotFound("item", string(postId))
}

func (s *Store) GetComments(ctx context.Context, postId item.PostId) ([]*item.Comment, error) {
	it, err := s.GetById(ctx, postId)
	if err != nil {
		return nil, err
	}
	return it.Comments, nil
}

func (s *Store) filter(keep func(*item.Item) bool) ([]*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	res := []*item.Item{}
	for _, it := range s.items {
		if keep(it) {
			res = append(res, s.copyLocked(it))
		}
	}
	return res, nil
}

func (s *Store) copyLocked(it *item.Item) *item.Item {
	cp := *it
	cp.Comments = []*item.Comment{}
	for _, c := range s.comments[it.PostId] {
		cc := *c
		cp.Comments = append(cp.Comments, &cc)
	}
	return &cp
}

func (s *Store) SetErr(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

func (s *Store) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Writes
}
