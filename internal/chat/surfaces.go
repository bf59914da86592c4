package chat

import "slices"

// Registry is the ordered set of conversations that currently have a
// visible surface, most recently activated first. A key appears at most once.
//
// When max is positive, inserting beyond it evicts the tail surface. Eviction
// only hides the surface; the conversation stays in the Store.
type Registry struct {
	keys []Key
	max  int
}

// NewRegistry creates a Registry bounded to max surfaces; 0 means unbounded.
func NewRegistry(max int) *Registry {
	if max < 0 {
		max = 0
	}
	return &Registry{max: max}
}

// Open inserts key at the head unless it is already open, in which case the
// ordering is left untouched.
func (r *Registry) Open(key Key) (evicted Key, ok bool) {
	if r.Contains(key) {
		return Key{}, false
	}
	return r.pushFront(key)
}

// Activate moves key to the head, inserting it if needed.
func (r *Registry) Activate(key Key) (evicted Key, ok bool) {
	if i := slices.Index(r.keys, key); i >= 0 {
		if i > 0 {
			copy(r.keys[1:i+1], r.keys[:i])
			r.keys[0] = key
		}
		return Key{}, false
	}
	return r.pushFront(key)
}

// Close removes key and reports whether it was open.
func (r *Registry) Close(key Key) bool {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return false
	}
	r.keys = slices.Delete(r.keys, i, i+1)
	return true
}

// Contains reports whether key has an open surface.
func (r *Registry) Contains(key Key) bool {
	return slices.Contains(r.keys, key)
}

// List returns the open keys, most recently activated first.
func (r *Registry) List() []Key {
	return slices.Clone(r.keys)
}

// Len returns the number of open surfaces.
func (r *Registry) Len() int {
	return len(r.keys)
}

// Max returns the bound; 0 means unbounded.
func (r *Registry) Max() int {
	return r.max
}

func (r *Registry) pushFront(key Key) (Key, bool) {
	r.keys = slices.Insert(r.keys, 0, key)
	if r.max > 0 && len(r.keys) > r.max {
		evicted := r.keys[len(r.keys)-1]
		r.keys = r.keys[:len(r.keys)-1]
		return evicted, true
	}
	return Key{}, false
}
