package feed

import (
	"sync"

	"lostfound/pkg/item"
)

// View is the state of one feed screen: the last delivered snapshot and the
// search box. Visible is always Filter(snapshot, query), whichever of the
// two changed last. Returned slices are copies.
type View struct {
	mu       sync.Mutex
	snapshot Snapshot
	query    string
	visible  []*item.Item
}

func (v *View) SetSnapshot(s Snapshot) []*item.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot = s
	v.visible = Filter(v.snapshot, v.query)
	return clone(v.visible)
}

func (v *View) SetQuery(q string) []*item.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query = q
	v.visible = Filter(v.snapshot, v.query)
	return clone(v.visible)
}

// Search filters the current snapshot without changing the stored query.
func (v *View) Search(q string) []*item.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Filter(v.snapshot, q)
}

func (v *View) Query() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

func (v *View) Visible() []*item.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.visible)
}
