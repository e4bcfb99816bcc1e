package rangeindex

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lilothar/gamma/internal/resource"
	"github.com/lilothar/gamma/rangeindex/config"
)

// Profile supplies the raw field value for a document. For numeric fields
// the bytes are the value's fixed-width little-endian form (as produced by
// EncodeInt32Key); Field applies ReverseEndian to turn them into an
// order-preserving key.
type Profile interface {
	GetFieldRawValue(doc DocId, fieldID int) ([]byte, error)
}

// MemoryStats reports posting-list memory usage, walked from a field's (or
// the whole coordinator's) keyed store.
type MemoryStats struct {
	DenseBytes  int64
	SparseBytes int64
	NodeCount   int
}

type mutationKind int

const (
	opAdd mutationKind = iota
	opDelete
)

type mutationOp struct {
	kind    mutationKind
	doc     DocId
	fieldID int
}

// Coordinator is the multi-field range/tag index: a registry of per-field
// indexes plus the asynchronous write pipeline (mutation queue + worker) and
// deferred-reclamation pipeline (reclamation queue + worker) that apply
// writes to them.
type Coordinator struct {
	cfg     *config.Config
	profile Profile
	log     *Logger

	fieldsMu sync.RWMutex
	fields   []*Field
	present  []map[DocId]struct{}

	mutationQueue chan mutationOp
	mutationSem   *semaphore.Weighted
	mutWG         sync.WaitGroup

	reclaimer *resourceReclaimer

	stopping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// resourceReclaimer pairs the rangeindex Reclaimer with the resource
// controller it was built with.
type resourceReclaimer struct {
	*Reclaimer
	ctrl *resource.Controller
}

// NewCoordinator creates a Coordinator and starts its mutation and
// reclamation worker goroutines.
func NewCoordinator(cfg *config.Config, profile Profile, log *Logger) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = NoopLogger()
	}

	ctrl := resource.NewController(resource.Config{
		PendingLimitBytes:   cfg.ReclaimMemoryLimitBytes,
		FreeRateBytesPerSec: cfg.ReclaimIOLimitBytesPerSec,
	})
	reclaimer := NewReclaimer(cfg.ReclaimQueueCapacity, cfg.ReclaimGracePeriod, ctrl, log)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:           cfg,
		profile:       profile,
		log:           log,
		fields:        make([]*Field, cfg.MaxFields),
		present:       make([]map[DocId]struct{}, cfg.MaxFields),
		mutationQueue: make(chan mutationOp, cfg.MutationQueueCapacity),
		mutationSem:   semaphore.NewWeighted(int64(cfg.MutationQueueCapacity)),
		reclaimer:     &resourceReclaimer{Reclaimer: reclaimer, ctrl: ctrl},
		ctx:           ctx,
		cancel:        cancel,
	}

	c.mutWG.Add(1)
	go c.runMutationWorker()
	go c.reclaimer.Run(ctx)

	return c
}

// AddField registers field id with the given type and default tuning. Fields
// must be registered before Add/Delete/Search reference them.
func (c *Coordinator) AddField(fieldID int, typ FieldType) error {
	if fieldID < 0 || fieldID >= len(c.fields) {
		return wrapf(ErrInvalidField, "field %d out of range [0,%d)", fieldID, len(c.fields))
	}
	c.fieldsMu.Lock()
	defer c.fieldsMu.Unlock()
	f := NewField(fieldID, typ, c.cfg.Delimiter, c.btreeDegreeFor(typ), fieldPath(fieldID), c.reclaimer.Reclaimer, c.log)
	if c.cfg.MaxNodeBytes > 0 {
		f.SetMaxNodeBytes(c.cfg.MaxNodeBytes)
	}
	c.fields[fieldID] = f
	c.present[fieldID] = make(map[DocId]struct{})
	return nil
}

// btreeDegreeFor picks the configured B-tree branching factor for a field
// type: MainBits for numeric fields (the source's "main" pool), Bits for
// string fields (the source's tag/"sub" pool).
func (c *Coordinator) btreeDegreeFor(typ FieldType) int {
	if typ == FieldNumeric {
		return c.cfg.MainBits
	}
	return c.cfg.Bits
}

func fieldPath(fieldID int) string {
	return "main_" + strconv.Itoa(fieldID) + ".dis"
}

// Add enqueues doc's insertion into field for the mutation worker to apply.
// Returns ErrQueueFull if the mutation queue is at capacity, ErrClosed after
// Close, or ErrInvalidField for an unregistered field.
func (c *Coordinator) Add(ctx context.Context, doc DocId, fieldID int) error {
	return c.enqueue(ctx, mutationOp{kind: opAdd, doc: doc, fieldID: fieldID})
}

// Delete enqueues doc's removal from field for the mutation worker to apply.
func (c *Coordinator) Delete(ctx context.Context, doc DocId, fieldID int) error {
	return c.enqueue(ctx, mutationOp{kind: opDelete, doc: doc, fieldID: fieldID})
}

func (c *Coordinator) enqueue(ctx context.Context, op mutationOp) error {
	if c.stopping.Load() {
		return ErrClosed
	}
	if f := c.fieldAt(op.fieldID); f == nil {
		return wrapf(ErrInvalidField, "field %d not registered", op.fieldID)
	}

	if !c.mutationSem.TryAcquire(1) {
		c.log.LogQueueFull(ctx, op.fieldID, op.doc)
		return ErrQueueFull
	}
	select {
	case c.mutationQueue <- op:
		return nil
	default:
		c.mutationSem.Release(1)
		c.log.LogQueueFull(ctx, op.fieldID, op.doc)
		return ErrQueueFull
	}
}

func (c *Coordinator) fieldAt(id int) *Field {
	c.fieldsMu.RLock()
	defer c.fieldsMu.RUnlock()
	if id < 0 || id >= len(c.fields) {
		return nil
	}
	return c.fields[id]
}

// runMutationWorker serializes all field writes in enqueue order. It exits
// once stopping is set and the queue has drained.
func (c *Coordinator) runMutationWorker() {
	defer c.mutWG.Done()
	for {
		select {
		case op, ok := <-c.mutationQueue:
			if !ok {
				return
			}
			c.mutationSem.Release(1)
			c.applyMutation(op)
		case <-time.After(1 * time.Second):
			if c.stopping.Load() && len(c.mutationQueue) == 0 {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Coordinator) applyMutation(op mutationOp) {
	c.fieldsMu.RLock()
	var f *Field
	var present map[DocId]struct{}
	if op.fieldID >= 0 && op.fieldID < len(c.fields) {
		f = c.fields[op.fieldID]
		present = c.present[op.fieldID]
	}
	c.fieldsMu.RUnlock()
	if f == nil {
		return
	}

	switch op.kind {
	case opAdd:
		if _, dup := present[op.doc]; dup {
			c.log.LogAdd(c.ctx, op.fieldID, op.doc, ErrDuplicateInsert)
			return
		}
		raw, err := c.profile.GetFieldRawValue(op.doc, op.fieldID)
		if err != nil {
			c.log.LogAdd(c.ctx, op.fieldID, op.doc, err)
			return
		}
		if err := f.Add(c.ctx, raw, op.doc); err != nil {
			c.log.LogAdd(c.ctx, op.fieldID, op.doc, err)
			return
		}
		present[op.doc] = struct{}{}
		c.log.LogAdd(c.ctx, op.fieldID, op.doc, nil)
	case opDelete:
		raw, err := c.profile.GetFieldRawValue(op.doc, op.fieldID)
		if err != nil {
			c.log.LogDelete(c.ctx, op.fieldID, op.doc, err)
			return
		}
		f.Delete(c.ctx, raw, op.doc)
		delete(present, op.doc)
	}
}

// Search evaluates filters and writes the resulting doc-set bitmap into out.
// Returns a positive doc-count upper bound, 0 for an empty intersection, or
// -1 if filters carries no usable constraint (the caller should treat this
// as "match everything").
func (c *Coordinator) Search(filters []FilterInfo, out *Result) (int, error) {
	if c.stopping.Load() {
		return 0, ErrClosed
	}

	expanded := make([]FilterInfo, 0, len(filters))
	for _, flt := range filters {
		f := c.fieldAt(flt.FieldID)
		if f == nil {
			return 0, wrapf(ErrInvalidField, "field %d not registered", flt.FieldID)
		}
		if !f.IsNumeric() && !flt.IsUnion {
			for _, tok := range splitTokens(flt.Lower, f.Delim()) {
				expanded = append(expanded, FilterInfo{FieldID: flt.FieldID, Lower: tok, IsUnion: true})
			}
			continue
		}
		expanded = append(expanded, flt)
	}

	if len(expanded) == 0 {
		return -1, nil
	}
	if len(expanded) == 1 {
		return c.searchOne(expanded[0], out)
	}

	results := make([]*Result, 0, len(expanded))
	shortestIdx := -1
	for _, flt := range expanded {
		r := NewResult()
		n, err := c.searchOne(flt, r)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil
		}
		results = append(results, r)
		if shortestIdx == -1 || r.DocNum() < results[shortestIdx].DocNum() {
			shortestIdx = len(results) - 1
		}
	}
	if len(results) == 0 {
		return -1, nil
	}

	n := Intersect(results, shortestIdx, out)
	if n > 0 {
		empty := true
		for _, w := range out.Ref() {
			if w != 0 {
				empty = false
				break
			}
		}
		if empty {
			n = 0
			out.SetDocNum(0)
		}
	}
	c.log.LogIntersect(c.ctx, len(results), n)
	return n, nil
}

func (c *Coordinator) searchOne(flt FilterInfo, out *Result) (int, error) {
	f := c.fieldAt(flt.FieldID)
	if f == nil {
		return 0, wrapf(ErrInvalidField, "field %d not registered", flt.FieldID)
	}
	var n int
	if f.IsNumeric() {
		n = f.Search(c.ctx, flt.Lower, flt.Upper, out)
	} else {
		n = f.SearchTags(c.ctx, flt.Lower, out)
	}
	c.log.LogSearch(c.ctx, 1, n, nil)
	return n, nil
}

// MemoryStats aggregates dense/sparse posting-list byte totals across every
// registered field.
func (c *Coordinator) MemoryStats() MemoryStats {
	c.fieldsMu.RLock()
	defer c.fieldsMu.RUnlock()
	var total MemoryStats
	for _, f := range c.fields {
		if f == nil {
			continue
		}
		s := f.MemoryStats()
		total.DenseBytes += s.DenseBytes
		total.SparseBytes += s.SparseBytes
		total.NodeCount += s.NodeCount
	}
	return total
}

// PendingReclaimBytes reports bytes currently awaiting deferred reclamation.
func (c *Coordinator) PendingReclaimBytes() int64 {
	return c.reclaimer.PendingBytes()
}

// Close stops the mutation worker, drains the reclamation worker, and
// releases every registered field. Close is idempotent; calling it twice
// returns ErrClosed on the second call.
func (c *Coordinator) Close() error {
	if !c.stopping.CompareAndSwap(false, true) {
		return ErrClosed
	}

	c.mutWG.Wait()
	c.reclaimer.Stop()
	c.reclaimer.Wait()

	c.fieldsMu.Lock()
	for i, f := range c.fields {
		if f == nil {
			continue
		}
		f.close()
		c.fields[i] = nil
	}
	c.fieldsMu.Unlock()

	c.cancel()
	return nil
}
