package rangeindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedStoreFindInsertUnique(t *testing.T) {
	s := newKeyedStore(32)
	n1 := NewNode(0, nil, nil)

	_, ok := s.find([]byte("a"))
	assert.False(t, ok)

	stored, inserted := s.insertUnique([]byte("a"), n1)
	assert.True(t, inserted)
	assert.Same(t, n1, stored)

	n2 := NewNode(0, nil, nil)
	stored2, inserted2 := s.insertUnique([]byte("a"), n2)
	assert.False(t, inserted2)
	assert.Same(t, n1, stored2, "insert_unique must not overwrite an existing key")

	found, ok := s.find([]byte("a"))
	require.True(t, ok)
	assert.Same(t, n1, found)
}

func TestKeyedStoreIterateFromOrdersAscending(t *testing.T) {
	s := newKeyedStore(32)
	keys := []string{"c", "a", "e", "b", "d"}
	for _, k := range keys {
		s.insertUnique([]byte(k), NewNode(0, nil, nil))
	}

	var seen []string
	s.iterateFrom(nil, func(key []byte, _ *Node) bool {
		seen = append(seen, string(key))
		return true
	})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestKeyedStoreIterateFromPivot(t *testing.T) {
	s := newKeyedStore(32)
	for _, k := range []string{"a", "b", "c", "d"} {
		s.insertUnique([]byte(k), NewNode(0, nil, nil))
	}

	var seen []string
	s.iterateFrom([]byte("b"), func(key []byte, _ *Node) bool {
		seen = append(seen, string(key))
		return true
	})
	assert.Equal(t, []string{"b", "c", "d"}, seen)
}

func TestKeyedStoreIterateFromStopsEarly(t *testing.T) {
	s := newKeyedStore(32)
	for _, k := range []string{"a", "b", "c", "d"} {
		s.insertUnique([]byte(k), NewNode(0, nil, nil))
	}

	var seen []string
	s.iterateFrom(nil, func(key []byte, _ *Node) bool {
		seen = append(seen, string(key))
		return string(key) != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestKeyedStoreDegreeBelowMinimumFallsBack(t *testing.T) {
	s := newKeyedStore(1)
	s.insertUnique([]byte("a"), NewNode(0, nil, nil))
	found, ok := s.find([]byte("a"))
	require.True(t, ok)
	assert.NotNil(t, found)
}

func TestKeyedStoreLenAndClose(t *testing.T) {
	s := newKeyedStore(32)
	s.insertUnique([]byte("a"), NewNode(0, nil, nil))
	s.insertUnique([]byte("b"), NewNode(0, nil, nil))
	assert.Equal(t, 2, s.len())

	s.close()
	assert.Equal(t, 0, s.len())
}
