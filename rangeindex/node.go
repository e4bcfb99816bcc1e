package rangeindex

import (
	"context"
	"math"
)

// DocId identifies a document. Ids are expected dense, favoring runs.
type DocId uint32

// wordBits is the bitmap word width. 64 on all targets this package builds for.
const wordBits = 64

// densityThresholdOffset is the minimum (max-min) span before the
// representation policy considers converting a Node.
const densityThresholdOffset = 100000

// NodeType identifies a Node's backing representation.
type NodeType int

const (
	// Dense backs the posting list with a bitmap over [minAligned, maxAligned].
	Dense NodeType = iota
	// Sparse backs the posting list with an unsorted DocId array.
	Sparse
)

func (t NodeType) String() string {
	if t == Dense {
		return "dense"
	}
	return "sparse"
}

// Node is a posting list for one key: the set of DocIds inserted under that
// key, backed by either a dense bitmap or a sparse array depending on how
// full the covered id range is.
//
// Nodes are not individually locked. Safety under concurrent access relies
// on the owning keyed store's lock guarding pointer handoff to readers, and
// on deferred reclamation (Reclaimer) outliving the longest reader scan.
type Node struct {
	typ NodeType

	// min/max track the smallest/largest inserted DocId; delete does not
	// shrink them. They are meaningful only while size > 0: emptiness is
	// represented via size==0 rather than a magic value, and Min() reports
	// math.MaxUint32 for an empty Node.
	min, max DocId

	minAligned, maxAligned int64
	size                    int

	dense  []uint64
	sparse []DocId
	cap    int

	// maxBytes caps the backing buffer's size in bytes. 0 leaves growth
	// unbounded. Checked before a dense or sparse grow allocation, never
	// after; the first allocation and Dense/Sparse conversions are not
	// checked against it.
	maxBytes int64

	reclaimer *Reclaimer
	fieldID   int
	log       *Logger
}

// NewNode creates an empty Node. The Node starts Dense; it is populated
// lazily by the first Add.
func NewNode(fieldID int, reclaimer *Reclaimer, log *Logger) *Node {
	if log == nil {
		log = NoopLogger()
	}
	return &Node{
		typ:       Dense,
		minAligned: -1,
		maxAligned: -1,
		reclaimer: reclaimer,
		fieldID:   fieldID,
		log:       log,
	}
}

// SetMaxBytes caps the Node's backing buffer at bytes; a grow that would
// exceed it fails with ErrResourceExhausted instead of allocating. 0 (the
// default) leaves growth unbounded. Intended to be set once, right after
// NewNode, before the first Add.
func (n *Node) SetMaxBytes(bytes int64) {
	n.maxBytes = bytes
}

// Type returns the Node's current backing representation.
func (n *Node) Type() NodeType { return n.typ }

// Size returns the number of DocIds currently in the Node.
func (n *Node) Size() int { return n.size }

// Min returns the smallest inserted DocId, or math.MaxUint32 if empty.
func (n *Node) Min() DocId {
	if n.size == 0 {
		return math.MaxUint32
	}
	return n.min
}

// Max returns the largest inserted DocId. With Size()==0 it is 0 for a Node
// that never held a DocId, and the last tracked maximum otherwise.
func (n *Node) Max() DocId { return n.max }

// MinAligned returns the word-aligned lower bound of the backing buffer.
func (n *Node) MinAligned() int64 { return n.minAligned }

// MaxAligned returns the word-aligned upper bound of the backing buffer.
func (n *Node) MaxAligned() int64 { return n.maxAligned }

func alignDown(v int64) int64 {
	return (v / wordBits) * wordBits
}

func setBit(buf []uint64, i int64) {
	buf[i/wordBits] |= 1 << uint(i%wordBits)
}

func clearBit(buf []uint64, i int64) {
	buf[i/wordBits] &^= 1 << uint(i%wordBits)
}

func testBit(buf []uint64, i int64) bool {
	return buf[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// Add inserts DocId v into the Node, applying the representation policy
// (evaluated against the Node's pre-insert state) before the insert lands.
func (n *Node) Add(ctx context.Context, v DocId) error {
	if n.size > 0 {
		n.maybeConvert(ctx)
	}
	if n.typ == Dense {
		return n.addDense(ctx, v)
	}
	return n.addSparse(ctx, v)
}

// maybeConvert evaluates the hysteresis-banded density policy against the
// Node's current (pre-insert) min/max/size and converts representation if
// the policy triggers.
func (n *Node) maybeConvert(ctx context.Context) {
	offset := int64(n.max) - int64(n.min)
	if offset <= densityThresholdOffset {
		return
	}
	density := float64(n.size) / float64(offset)
	switch {
	case n.typ == Dense && density < 0.08:
		n.convertToSparse(ctx)
	case n.typ == Sparse && density > 0.10:
		n.convertToDense(ctx)
	}
}

func (n *Node) addDense(ctx context.Context, v DocId) error {
	iv := int64(v)

	if n.size == 0 {
		minA := alignDown(iv)
		maxA := minA + wordBits - 1
		n.dense = make([]uint64, (maxA-minA+1)/wordBits)
		n.minAligned, n.maxAligned = minA, maxA
		setBit(n.dense, iv-minA)
		n.min, n.max = v, v
		n.size = 1
		return nil
	}

	switch {
	case iv < n.minAligned:
		newMinA := alignDown(iv)
		newWords := (n.maxAligned - newMinA + 1) / wordBits
		if err := n.checkGrowBudget(newWords * 8); err != nil {
			return err
		}
		newBuf := make([]uint64, newWords)
		wordOffset := (n.minAligned - newMinA) / wordBits
		copy(newBuf[wordOffset:], n.dense)
		n.retire(ctx, n.dense, nil)
		n.dense = newBuf
		n.minAligned = newMinA
		setBit(n.dense, iv-newMinA)
		n.log.LogGrow(ctx, n.fieldID, "down", int(n.maxAligned-n.minAligned+1))
	case iv > n.maxAligned:
		k := iv / wordBits
		newMaxA := (k+1)*wordBits*2 - 1
		newWords := (newMaxA - n.minAligned + 1) / wordBits
		if err := n.checkGrowBudget(newWords * 8); err != nil {
			return err
		}
		newBuf := make([]uint64, newWords)
		copy(newBuf, n.dense)
		n.retire(ctx, n.dense, nil)
		n.dense = newBuf
		n.maxAligned = newMaxA
		setBit(n.dense, iv-n.minAligned)
		n.log.LogGrow(ctx, n.fieldID, "up", int(n.maxAligned-n.minAligned+1))
	default:
		setBit(n.dense, iv-n.minAligned)
	}

	if v < n.min {
		n.min = v
	}
	if v > n.max {
		n.max = v
	}
	n.size++
	return nil
}

func (n *Node) addSparse(ctx context.Context, v DocId) error {
	growing := n.size == n.cap
	newCap := n.cap
	if growing {
		newCap = n.cap * 2
		if newCap == 0 {
			newCap = 1
		}
		if err := n.checkGrowBudget(int64(newCap) * 4); err != nil {
			return err
		}
	}

	if n.size == 0 {
		n.min, n.max = v, v
	} else {
		if v < n.min {
			n.min = v
		}
		if v > n.max {
			n.max = v
		}
	}
	n.minAligned = alignDown(int64(n.min))
	n.maxAligned = alignDown(int64(n.max)) + wordBits - 1

	if growing {
		newBuf := make([]DocId, newCap)
		copy(newBuf, n.sparse)
		n.retire(ctx, nil, n.sparse)
		n.sparse = newBuf
		n.cap = newCap
	}
	n.sparse = n.sparse[:n.cap]
	n.sparse[n.size] = v
	n.size++
	return nil
}

// checkGrowBudget reports ErrResourceExhausted if a grow to newSizeBytes
// would exceed maxBytes. 0 means unbounded.
func (n *Node) checkGrowBudget(newSizeBytes int64) error {
	if n.maxBytes <= 0 {
		return nil
	}
	if newSizeBytes > n.maxBytes {
		return wrapf(ErrResourceExhausted, "field %d node would grow to %d bytes (limit %d)", n.fieldID, newSizeBytes, n.maxBytes)
	}
	return nil
}

// Delete removes v from the Node. Returns ErrNotFound if v is not present.
func (n *Node) Delete(ctx context.Context, v DocId) error {
	if n.typ == Dense {
		return n.deleteDense(ctx, v)
	}
	return n.deleteSparse(ctx, v)
}

func (n *Node) deleteDense(ctx context.Context, v DocId) error {
	iv := int64(v)
	if n.size == 0 || iv < n.minAligned || iv > n.maxAligned {
		return wrapf(ErrNotFound, "doc %d not in node span", v)
	}
	i := iv - n.minAligned
	if !testBit(n.dense, i) {
		return wrapf(ErrNotFound, "doc %d not set", v)
	}
	clearBit(n.dense, i)
	n.size--
	n.log.LogDelete(ctx, n.fieldID, v, nil)
	return nil
}

func (n *Node) deleteSparse(ctx context.Context, v DocId) error {
	for i := 0; i < n.size; i++ {
		if n.sparse[i] == v {
			copy(n.sparse[i:n.size-1], n.sparse[i+1:n.size])
			n.size--
			n.log.LogDelete(ctx, n.fieldID, v, nil)
			return nil
		}
	}
	return wrapf(ErrNotFound, "doc %d not found", v)
}

// convertToSparse rebuilds the Node as a sparse array from the current dense
// bitmap, per the representation policy.
func (n *Node) convertToSparse(ctx context.Context) {
	buf := make([]DocId, n.size)
	idx := 0
	for bit := n.minAligned; bit <= n.maxAligned; bit++ {
		if testBit(n.dense, bit-n.minAligned) {
			if idx < len(buf) {
				buf[idx] = DocId(bit)
			}
			idx++
		}
	}
	mismatch := idx != n.size
	n.log.LogConvert(ctx, n.fieldID, Dense, Sparse, mismatch)

	n.retire(ctx, n.dense, nil)
	n.dense = nil
	n.sparse = buf
	n.cap = n.size
	n.typ = Sparse
}

// convertToDense rebuilds the Node as a dense bitmap from the current sparse
// array, per the representation policy.
func (n *Node) convertToDense(ctx context.Context) {
	words := (n.maxAligned - n.minAligned + 1) / wordBits
	buf := make([]uint64, words)
	mismatch := false
	for i := 0; i < n.size; i++ {
		v := int64(n.sparse[i])
		if v < n.minAligned || v > n.maxAligned {
			mismatch = true
			continue
		}
		setBit(buf, v-n.minAligned)
	}
	n.log.LogConvert(ctx, n.fieldID, Sparse, Dense, mismatch)

	n.retire(ctx, nil, n.sparse)
	n.sparse = nil
	n.cap = 0
	n.dense = buf
	n.typ = Dense
}

// retire submits a superseded buffer for deferred reclamation.
func (n *Node) retire(ctx context.Context, oldDense []uint64, oldSparse []DocId) {
	if n.reclaimer == nil {
		return
	}
	var bytes int64
	if oldDense != nil {
		bytes = int64(len(oldDense)) * 8
	}
	if oldSparse != nil {
		bytes = int64(len(oldSparse)) * 4
	}
	n.reclaimer.Submit(ctx, bytes)
}

// DenseWords returns the raw bitmap words for bulk OR-ing by higher layers.
// Only valid when Type() == Dense.
func (n *Node) DenseWords() []uint64 { return n.dense }

// SparseValues returns the raw sparse array for bulk OR-ing by higher layers.
// Only valid when Type() == Sparse.
func (n *Node) SparseValues() []DocId { return n.sparse[:n.size] }

// MemoryBytes reports the Node's current backing buffer size in bytes.
func (n *Node) MemoryBytes() int {
	if n.typ == Dense {
		return len(n.dense) * 8
	}
	return n.cap * 4
}
