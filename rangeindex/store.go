package rangeindex

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// defaultBTreeDegree is used when a field's configured degree is too small
// for google/btree to accept.
const defaultBTreeDegree = 32

// storeItem is the value stored in the keyed store: a key plus the posting
// list Node it resolves to.
type storeItem struct {
	key  []byte
	node *Node
}

// keyedStore is the concrete realization of the Keyed-store interface: an
// ordered key->Node map supporting point lookup, insert-if-absent, and
// ascending range scans from a pivot. It is the in-memory analogue of the
// disk-paged B-tree the interface was modeled on; google/btree's generic
// BTreeG provides the ordered structure, and a single RWMutex stands in for
// the original's per-page latches.
type keyedStore struct {
	mu sync.RWMutex
	bt *btree.BTreeG[*storeItem]
}

// newKeyedStore builds a keyed store with the given B-tree branching
// degree, carried through from Config.Bits/MainBits so that tuning the
// field-index config actually changes the store's node fan-out rather than
// being a no-op. Degrees below 2 (google/btree's minimum) fall back to
// defaultBTreeDegree.
func newKeyedStore(degree int) *keyedStore {
	if degree < 2 {
		degree = defaultBTreeDegree
	}
	less := func(a, b *storeItem) bool { return bytes.Compare(a.key, b.key) < 0 }
	return &keyedStore{bt: btree.NewG[*storeItem](degree, less)}
}

// find returns the Node stored under key, or (nil, false) if absent or if
// the store has been closed.
func (s *keyedStore) find(key []byte) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bt == nil {
		return nil, false
	}
	item, ok := s.bt.Get(&storeItem{key: key})
	if !ok {
		return nil, false
	}
	return item.node, true
}

// insertUnique inserts node under key only if key is absent. Returns the
// Node now stored under key (the new one on success, the existing one on a
// collision) and whether the insert happened. Returns (nil, false) if the
// store has been closed, distinguishable from a collision by the nil Node.
func (s *keyedStore) insertUnique(key []byte, node *Node) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bt == nil {
		return nil, false
	}
	if existing, ok := s.bt.Get(&storeItem{key: key}); ok {
		return existing.node, false
	}
	stored := append([]byte(nil), key...)
	s.bt.ReplaceOrInsert(&storeItem{key: stored, node: node})
	return node, true
}

// iterateFrom yields (key, node) pairs in ascending key order, starting at
// the first key >= start. A nil start iterates from the beginning. fn
// returning false stops the scan early.
func (s *keyedStore) iterateFrom(start []byte, fn func(key []byte, node *Node) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iter := func(item *storeItem) bool { return fn(item.key, item.node) }
	if start == nil {
		s.bt.Ascend(iter)
		return
	}
	s.bt.AscendGreaterOrEqual(&storeItem{key: start}, iter)
}

// len returns the number of keys currently stored.
func (s *keyedStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bt == nil {
		return 0
	}
	return s.bt.Len()
}

// close releases the store's internal structure. Afterwards find and
// insertUnique report absent and len reports 0; iterateFrom does not check
// for a closed store.
func (s *keyedStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bt = nil
}
