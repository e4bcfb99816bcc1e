package rangeindex

import (
	"bytes"
	"context"
	"encoding/binary"
)

// EncodeInt32Key encodes v as the fixed-width key bytes a Profile is
// expected to hand to numeric fields: Field.Add/Search apply ReverseEndian
// to these bytes, which both restores big-endian byte order and flips the
// result's sign bit, so the final stored key compares unsigned the same way
// v compares signed. The bytes handed in here are therefore v's raw
// little-endian bit pattern, pre-ReverseEndian.
func EncodeInt32Key(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// ReverseEndian reverses key's byte order and flips the sign bit of the
// resulting first byte (equivalently, adds 0x80 to it mod 256). Applied to a
// raw little-endian integer encoding, this produces a big-endian,
// sign-flipped key whose unsigned lexicographic order matches the integer's
// signed numeric order. Field applies it identically on insert and query so
// the keyed store's byte comparisons stay consistent with numeric order.
func ReverseEndian(key []byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[len(key)-1-i] = b
	}
	if len(out) > 0 {
		out[0] ^= 0x80
	}
	return out
}

// splitTokens splits raw on delim, dropping empty tokens.
func splitTokens(raw []byte, delim byte) [][]byte {
	var toks [][]byte
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == delim {
			if i > start {
				toks = append(toks, raw[start:i])
			}
			start = i + 1
		}
	}
	return toks
}

// Field is a per-field index: one ordered keyed store plus the metadata
// needed to derive keys from a raw field value.
type Field struct {
	id    int
	typ   FieldType
	delim byte
	path  string // diagnostic only; no files are created (in-memory store)

	store     *keyedStore
	reclaimer *Reclaimer
	log       *Logger

	// maxNodeBytes, if set, is applied to every Node this Field creates
	// (see SetMaxNodeBytes).
	maxNodeBytes int64
}

// NewField constructs a per-field index. degree sets the keyed store's
// B-tree branching factor (Config.Bits for string fields, Config.MainBits
// for numeric fields — the source's main-pool/sub-pool split, carried
// through here as the one knob google/btree has an analogue for).
func NewField(id int, typ FieldType, delim byte, degree int, path string, reclaimer *Reclaimer, log *Logger) *Field {
	if log == nil {
		log = NoopLogger()
	}
	return &Field{
		id:        id,
		typ:       typ,
		delim:     delim,
		path:      path,
		store:     newKeyedStore(degree),
		reclaimer: reclaimer,
		log:       log,
	}
}

// SetMaxNodeBytes caps the backing buffer size of every Node this Field
// creates from this point on; existing Nodes are left as-is. 0 (the
// default) leaves Node growth unbounded. A Node that hits the cap fails its
// Add with ErrResourceExhausted instead of growing past it.
func (f *Field) SetMaxNodeBytes(bytes int64) {
	f.maxNodeBytes = bytes
}

// IsNumeric reports whether the field holds numeric (range-queryable) keys.
func (f *Field) IsNumeric() bool { return f.typ == FieldNumeric }

// Delim returns the field's tag delimiter.
func (f *Field) Delim() byte { return f.delim }

// Path returns the diagnostic storage path recorded for this field (no files
// are actually created; the keyed store is in-memory).
func (f *Field) Path() string { return f.path }

// deriveKeys splits a raw field value into the one or more keys it inserts
// under: a single normalized key for numeric fields, one key per delimited
// tag for string fields.
func (f *Field) deriveKeys(raw []byte) [][]byte {
	if f.typ == FieldNumeric {
		return [][]byte{ReverseEndian(raw)}
	}
	return splitTokens(raw, f.delim)
}

// findOrCreate returns the Node stored under key, creating and inserting an
// empty one if absent. Returns nil if the field's store has been closed.
func (f *Field) findOrCreate(key []byte) *Node {
	if node, ok := f.store.find(key); ok {
		return node
	}
	node := NewNode(f.id, f.reclaimer, f.log)
	if f.maxNodeBytes > 0 {
		node.SetMaxBytes(f.maxNodeBytes)
	}
	stored, ok := f.store.insertUnique(key, node)
	if !ok && stored == nil {
		return nil
	}
	return stored
}

// Add inserts doc under every key derived from raw. Returns ErrKeyStore if
// the field's store has already been closed (Field.close), which a caller
// driving Field directly rather than through a Coordinator could otherwise
// race against.
func (f *Field) Add(ctx context.Context, raw []byte, doc DocId) error {
	for _, key := range f.deriveKeys(raw) {
		node := f.findOrCreate(key)
		if node == nil {
			return wrapf(ErrKeyStore, "field %d store is closed", f.id)
		}
		if err := node.Add(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes doc from every key derived from raw. Deletes of unknown
// doc ids are logged and swallowed, never propagated as an error.
func (f *Field) Delete(ctx context.Context, raw []byte, doc DocId) {
	for _, key := range f.deriveKeys(raw) {
		node, ok := f.store.find(key)
		if !ok {
			f.log.LogDelete(ctx, f.id, doc, ErrNotFound)
			continue
		}
		if err := node.Delete(ctx, doc); err != nil {
			f.log.LogDelete(ctx, f.id, doc, err)
		}
	}
}

// Search evaluates an inclusive numeric range [low, high] and ORs every
// matching key's Node into out. Returns the upper-bound doc count
// (max-min+1) and 0 for an empty range.
func (f *Field) Search(ctx context.Context, low, high []byte, out *Result) int {
	lowKey := ReverseEndian(low)
	highKey := ReverseEndian(high)

	var nodes []*Node
	f.store.iterateFrom(lowKey, func(key []byte, node *Node) bool {
		if bytes.Compare(key, highKey) > 0 {
			return false
		}
		if node.Size() > 0 {
			nodes = append(nodes, node)
		}
		return true
	})

	rangeBound, _ := buildUnionResult(nodes, out)
	return rangeBound
}

// SearchTags evaluates a union of delimiter-joined tags and ORs every
// matching tag's Node into out. Tags with no Node are logged and skipped.
// Returns the summed Node sizes, not a range bound: a max-min+1 style bound
// over widely separated tags can be far larger than the number of matching
// docs. The sum counts a doc once per matching tag, so it is an upper bound
// when a doc carries more than one of the queried tags.
func (f *Field) SearchTags(ctx context.Context, tags []byte, out *Result) int {
	var nodes []*Node
	for _, tok := range splitTokens(tags, f.delim) {
		node, ok := f.store.find(tok)
		if !ok {
			f.log.DebugContext(ctx, "tag not found", "field_id", f.id, "tag", string(tok))
			continue
		}
		if node.Size() > 0 {
			nodes = append(nodes, node)
		}
	}
	_, summedSize := buildUnionResult(nodes, out)
	return summedSize
}

// buildUnionResult sizes out to the union of the given nodes' aligned spans
// and ORs each node's bits in. Returns both candidate doc-counts a caller
// might want: rangeBound (max-min+1 over the union's doc-id span, the bound
// Search uses for disjoint numeric keys) and summedSize (the sum of each
// Node's size, the bound SearchTags uses since unioned tags can overlap).
func buildUnionResult(nodes []*Node, out *Result) (rangeBound, summedSize int) {
	if len(nodes) == 0 {
		return 0, 0
	}

	globalMin, globalMax := nodes[0].Min(), nodes[0].Max()
	minAligned, maxAligned := nodes[0].MinAligned(), nodes[0].MaxAligned()
	for _, n := range nodes[1:] {
		if n.Min() < globalMin {
			globalMin = n.Min()
		}
		if n.Max() > globalMax {
			globalMax = n.Max()
		}
		if n.MinAligned() < minAligned {
			minAligned = n.MinAligned()
		}
		if n.MaxAligned() > maxAligned {
			maxAligned = n.MaxAligned()
		}
	}
	if globalMax < globalMin {
		return 0, 0
	}

	out.Resize(minAligned, maxAligned)
	for _, n := range nodes {
		if n.Type() == Dense {
			out.orWords(n.DenseWords(), n.MinAligned())
		} else {
			for _, v := range n.SparseValues() {
				out.SetRange(v)
			}
		}
		summedSize += n.Size()
	}
	out.SetDocNum(summedSize)

	return int(globalMax) - int(globalMin) + 1, summedSize
}

// MemoryStats reports dense/sparse byte totals and Node count for this field.
func (f *Field) MemoryStats() MemoryStats {
	var stats MemoryStats
	f.store.iterateFrom(nil, func(_ []byte, node *Node) bool {
		stats.NodeCount++
		if node.Type() == Dense {
			stats.DenseBytes += int64(node.MemoryBytes())
		} else {
			stats.SparseBytes += int64(node.MemoryBytes())
		}
		return true
	})
	return stats
}

// close releases the field's store. Nodes are not visited; they are left to
// the garbage collector.
func (f *Field) close() {
	f.store.close()
}
