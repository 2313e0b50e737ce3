package thread

import (
	"context"
	"sync"

	"lostfound/pkg/item"
)

// Thread is the comment list of one open item. Comments added through it are
// shown right away and merged with live deliveries by key, so each comment
// is listed once.
type Thread struct {
	svc      *Service
	postId   item.PostId
	onChange func([]*item.Comment)
	stop     func()

	mu       sync.Mutex
	comments []*item.Comment
	pending  []*item.Comment
	seq      uint64

	// serializes onChange; a state older than the last one handed out is dropped
	notifyMu sync.Mutex
	notified uint64
}

// Open starts watching postId. onChange receives the merged list after every
// local append and every live delivery; it may be nil.
func Open(ctx context.Context, svc *Service, postId item.PostId, onChange func([]*item.Comment)) (*Thread, error) {
	t := &Thread{
		svc:      svc,
		postId:   postId,
		onChange: onChange,
		comments: []*item.Comment{},
	}
	stop, err := svc.Watch(ctx, postId, t.Apply)
	if err != nil {
		return nil, err
	}
	t.stop = stop
	return t, nil
}

// Add writes the comment and appends it locally once the write succeeded.
func (t *Thread) Add(ctx context.Context, author, text string) (*item.Comment, error) {
	c, err := t.svc.AddComment(ctx, t.postId, author, text)
	if err != nil {
		return nil, err
	}
	t.Append(c)
	return c, nil
}

// Append shows c before the store delivers it. A comment already listed is
// ignored.
func (t *Thread) Append(c *item.Comment) {
	t.mu.Lock()
	if indexOf(t.comments, c.Id) >= 0 {
		t.mu.Unlock()
		return
	}
	t.pending = append(t.pending, c)
	t.comments = append(t.comments, c)
	seq, res := t.nextLocked()
	t.mu.Unlock()

	t.notify(seq, res)
}

// Apply replaces the list with a store delivery. Locally appended comments
// the delivery does not carry yet stay at the end.
func (t *Thread) Apply(delivered []*item.Comment) {
	t.mu.Lock()
	merged := make([]*item.Comment, 0, len(delivered)+len(t.pending))
	merged = append(merged, delivered...)

	stillPending := t.pending[:0]
	for _, c := range t.pending {
		if indexOf(delivered, c.Id) < 0 {
			stillPending = append(stillPending, c)
			merged = append(merged, c)
		}
	}
	t.pending = stillPending
	t.comments = merged
	seq, res := t.nextLocked()
	t.mu.Unlock()

	t.notify(seq, res)
}

func (t *Thread) Comments() []*item.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Close stops the live subscription. It must not be called from onChange.
func (t *Thread) Close() {
	if t.stop != nil {
		t.stop()
	}
}

func (t *Thread) snapshotLocked() []*item.Comment {
	res := make([]*item.Comment, len(t.comments))
	copy(res, t.comments)
	return res
}

func (t *Thread) nextLocked() (uint64, []*item.Comment) {
	t.seq++
	return t.seq, t.snapshotLocked()
}

func (t *Thread) notify(seq uint64, comments []*item.Comment) {
	if t.onChange == nil {
		return
	}
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if seq <= t.notified {
		return
	}
	t.notified = seq
	t.onChange(comments)
}

func indexOf(comments []*item.Comment, id item.CommentId) int {
	for i, c := range comments {
		if c.Id == id {
			return i
		}
	}
	return -1
}
