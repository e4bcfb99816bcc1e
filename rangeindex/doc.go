// Package rangeindex provides an in-memory multi-field range/tag inverted
// index for scalar document attributes.
//
// Each field (numeric or string-tag) owns an ordered keyed store mapping
// encoded keys to posting lists ("Nodes"). A Node switches between a dense
// bitmap and a sparse doc-id array depending on how full its covered range
// is, so both highly selective tags and dense numeric ranges stay memory
// efficient.
//
// # Quick Start
//
//	c := rangeindex.NewCoordinator(config.Default(), profile, rangeindex.NoopLogger())
//	c.AddField(0, rangeindex.FieldNumeric)
//	c.AddField(1, rangeindex.FieldString)
//
//	c.Add(ctx, docID, 0) // enqueued; applied by the mutation worker
//	c.Add(ctx, docID, 1)
//
//	out := rangeindex.NewResult()
//	n, err := c.Search([]rangeindex.FilterInfo{
//	    {FieldID: 0, Lower: lowBytes, Upper: highBytes},
//	}, out)
//
// Writes are asynchronous: Add/Delete enqueue a mutation and return
// immediately, so a Search issued right after an Add may not yet observe it.
//
// # Concurrency
//
// Search, Add, and Delete are all safe to call concurrently from many
// goroutines. A single mutation worker serializes writes across all fields;
// a single reclamation worker frees superseded Node buffers once a grace
// period has elapsed, so a reader holding a buffer handle across a concurrent
// grow or conversion never observes a freed buffer.
//
// # Non-goals
//
// The index is purely in-memory: it does not persist posting lists across
// restarts, replicate across nodes, evaluate vector similarity, parse a
// query language, or enforce access control.
package rangeindex
