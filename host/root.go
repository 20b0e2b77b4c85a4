package host

import (
	"sort"
	"sync"
)

// StateRoot is the page-root equivalent: a class set observable by the
// host UI. The permission classifier is its only writer; everything
// else reads.
type StateRoot struct {
	mu      sync.Mutex
	classes map[string]struct{}
}

func NewStateRoot() *StateRoot {
	return &StateRoot{classes: make(map[string]struct{})}
}

func (r *StateRoot) Add(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class] = struct{}{}
}

func (r *StateRoot) Remove(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.classes, class)
}

func (r *StateRoot) Has(class string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.classes[class]
	return ok
}

// Classes returns the current class set in stable order.
func (r *StateRoot) Classes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.classes))
	for class := range r.classes {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}
