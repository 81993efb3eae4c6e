package storage

import "sync"

// Overlay buffers writes on top of a base database so a whole sequence of
// mutations can be committed or discarded as one unit. Reads see buffered
// writes first. It backs the all-or-nothing semantics of engine calls: the
// RPC layer routes each call through a fresh overlay and commits only on
// success.
type Overlay struct {
	base Database

	mu      sync.RWMutex
	writes  map[string][]byte
	deleted map[string]bool
}

// NewOverlay constructs an overlay on top of base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Put buffers a write.
func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	o.writes[string(key)] = stored
	delete(o.deleted, string(key))
	return nil
}

// Get returns the buffered value if present, falling back to the base.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	if value, ok := o.writes[string(key)]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		o.mu.RUnlock()
		return out, nil
	}
	if o.deleted[string(key)] {
		o.mu.RUnlock()
		return nil, ErrNotFound
	}
	o.mu.RUnlock()
	return o.base.Get(key)
}

// Has reports whether the key resolves to a value through the overlay.
func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	if _, ok := o.writes[string(key)]; ok {
		o.mu.RUnlock()
		return true, nil
	}
	if o.deleted[string(key)] {
		o.mu.RUnlock()
		return false, nil
	}
	o.mu.RUnlock()
	return o.base.Has(key)
}

// Delete buffers a deletion.
func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deleted[string(key)] = true
	return nil
}

// Close discards the buffer without touching the base.
func (o *Overlay) Close() error {
	o.Discard()
	return nil
}

// Commit flushes all buffered mutations to the base database and resets the
// buffer. Writes flush before deletions; a failure leaves the base partially
// updated, so callers treat a commit error as fatal.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	for key := range o.deleted {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deleted = make(map[string]bool)
	return nil
}

// Discard drops all buffered mutations.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deleted = make(map[string]bool)
}
