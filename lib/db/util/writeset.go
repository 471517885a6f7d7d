package util

import (
	"sort"

	"github.com/ValentinKolb/kvmap/lib/db"
)

// ----------------------------------------------------------------------------
// WriteSet
// ----------------------------------------------------------------------------

// WriteSet buffers the pending writes of a writable transaction.
// A nil entry marks a pending delete. Engines consult the write set before
// their committed state so a transaction observes its own writes.
//
// Not safe for concurrent use; a transaction belongs to a single goroutine.
type WriteSet struct {
	changes map[string]map[string]*db.Entry
	count   int
}

// NewWriteSet creates an empty write set
func NewWriteSet() *WriteSet {
	return &WriteSet{changes: make(map[string]map[string]*db.Entry)}
}

func (w *WriteSet) collection(name string) map[string]*db.Entry {
	c, ok := w.changes[name]
	if !ok {
		c = make(map[string]*db.Entry)
		w.changes[name] = c
	}
	return c
}

// Put stages an entry. Both payloads are copied.
func (w *WriteSet) Put(collection, key string, entry db.Entry) {
	c := w.collection(collection)
	if _, ok := c[key]; !ok {
		w.count++
	}
	c[key] = &db.Entry{Object: CloneBytes(entry.Object), Metadata: CloneBytes(entry.Metadata)}
}

// Delete stages a delete
func (w *WriteSet) Delete(collection, key string) {
	c := w.collection(collection)
	if _, ok := c[key]; !ok {
		w.count++
	}
	c[key] = nil
}

// Lookup reports whether the write set decides the given slot.
// If decided is true, found tells whether the slot holds an entry after the transaction.
func (w *WriteSet) Lookup(collection, key string) (entry db.Entry, found bool, decided bool) {
	c, ok := w.changes[collection]
	if !ok {
		return db.Entry{}, false, false
	}
	e, ok := c[key]
	if !ok {
		return db.Entry{}, false, false
	}
	if e == nil {
		return db.Entry{}, false, true
	}
	return *e, true, true
}

// MergeKeys applies the staged changes of a collection to its committed keys
// and returns the result in ascending order
func (w *WriteSet) MergeKeys(collection string, committed []string) []string {
	c := w.changes[collection]
	merged := make([]string, 0, len(committed)+len(c))
	for _, key := range committed {
		if _, staged := c[key]; !staged {
			merged = append(merged, key)
		}
	}
	for key, e := range c {
		if e != nil {
			merged = append(merged, key)
		}
	}
	sort.Strings(merged)
	return merged
}

// MergeCollections applies the staged changes to the committed collection names.
// keysOf must return the committed keys of a collection.
func (w *WriteSet) MergeCollections(committed []string, keysOf func(collection string) ([]string, error)) ([]string, error) {
	names := make(map[string]struct{}, len(committed))
	for _, name := range committed {
		names[name] = struct{}{}
	}
	for name := range w.changes {
		keys, err := keysOf(name)
		if err != nil {
			return nil, err
		}
		if len(w.MergeKeys(name, keys)) > 0 {
			names[name] = struct{}{}
		} else {
			delete(names, name)
		}
	}
	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// Changes returns the staged changes grouped by collection
func (w *WriteSet) Changes() map[string]map[string]*db.Entry {
	return w.changes
}

// Len returns the number of staged slots
func (w *WriteSet) Len() int {
	return w.count
}

// Reset drops all staged changes
func (w *WriteSet) Reset() {
	w.changes = make(map[string]map[string]*db.Entry)
	w.count = 0
}

// CloneBytes returns a copy of b. A nil slice stays nil.
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
