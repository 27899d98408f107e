package chat

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry is the set of connected members keyed by a monotonically assigned id.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	members map[uint64]*Member

	sequence atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[uint64]*Member),
	}
}

// Add stores a new member and returns its id. Ids are never reused. An empty
// name is replaced with one derived from the id.
func (r *Registry) Add(name string, outbox *Outbox) uint64 {
	return r.add(name, outbox).ID
}

func (r *Registry) add(name string, outbox *Outbox) *Member {
	id := r.sequence.Add(1)
	if name == "" {
		name = fmt.Sprintf("user-%03d", id)
	}
	m := &Member{ID: id, Name: name, outbox: outbox}

	r.mu.Lock()
	r.members[id] = m
	r.mu.Unlock()

	return m
}

// Remove deletes the member with the given id and returns it. Removing an
// unknown id is a no-op.
func (r *Registry) Remove(id uint64) (*Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if ok {
		delete(r.members, id)
	}
	return m, ok
}

func (r *Registry) Get(id uint64) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	return m, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ForEach calls fn for every member present when the traversal starts, in id
// order. The lock is not held while fn runs, so fn may add or remove members.
func (r *Registry) ForEach(fn func(*Member)) {
	for _, m := range r.snapshot() {
		fn(m)
	}
}

func (r *Registry) snapshot() []*Member {
	r.mu.RLock()
	members := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}
