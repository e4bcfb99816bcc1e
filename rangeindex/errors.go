package rangeindex

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned when a Node's backing buffer would
	// need to grow past its configured Config.MaxNodeBytes cap.
	ErrResourceExhausted = errors.New("rangeindex: resource exhausted")

	// ErrNotFound is returned when a delete targets a doc id that is not present.
	ErrNotFound = errors.New("rangeindex: not found")

	// ErrKeyStore is returned when an operation reaches a field whose keyed
	// store has already been closed.
	ErrKeyStore = errors.New("rangeindex: keyed store error")

	// ErrQueueFull is returned when the mutation queue rejects an enqueue.
	ErrQueueFull = errors.New("rangeindex: queue full")

	// ErrDuplicateInsert is returned when Add is issued twice for the same
	// (doc id, field) pair without an intervening Delete.
	ErrDuplicateInsert = errors.New("rangeindex: duplicate insert")

	// ErrClosed is returned by operations issued after the coordinator has
	// been closed.
	ErrClosed = errors.New("rangeindex: closed")

	// ErrInvalidField is returned when a field id is unknown or out of range.
	ErrInvalidField = errors.New("rangeindex: invalid field")
)

// wrapf wraps err with sentinel using fmt.Errorf's %w so errors.Is/errors.As
// keep working across the coordinator boundary.
func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
