package reactive

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Observer is anything that must be told when a value it read has changed.
type Observer interface {
	ID() uint64
	Invalidate()
}

// tracker is an observer that records which sources it read.
type tracker interface {
	Observer
	track(src source)
}

// source is a readable cell an observer can detach from.
type source interface {
	unsubscribe(o Observer)
}

// debugLog is set by the host for tracing.
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

var nextID atomic.Uint64

func newID() uint64 { return nextID.Add(1) }

// Dependency tracking and batching are per goroutine: a read on one goroutine
// never subscribes an observer that is evaluating on another.
var (
	trackers sync.Map // goroutine id -> tracker (nil inside Untracked)
	batches  sync.Map // goroutine id -> *Batch
	tracking atomic.Int64
	batching atomic.Int64
)

// goid returns the id of the calling goroutine from its stack header.
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("reactive: cannot read goroutine id: " + err.Error())
	}
	return id
}

// swap installs v under id in m and returns a func restoring the old entry.
func swap(m *sync.Map, id uint64, v any) func() {
	prev, had := m.Swap(id, v)
	return func() {
		if had {
			m.Store(id, prev)
		} else {
			m.Delete(id)
		}
	}
}

func withTracker(t tracker, fn func()) {
	tracking.Add(1)
	restore := swap(&trackers, goid(), t)
	defer func() {
		restore()
		tracking.Add(-1)
	}()
	fn()
}

// Untracked runs fn without recording dependencies for the current observer.
func Untracked(fn func()) {
	if tracking.Load() == 0 {
		fn()
		return
	}
	defer swap(&trackers, goid(), nil)()
	fn()
}

func currentTracker() tracker {
	if tracking.Load() == 0 {
		return nil
	}
	t, _ := trackers.Load(goid())
	tr, _ := t.(tracker)
	return tr
}

type subscribers struct {
	mu   sync.RWMutex
	subs map[uint64]Observer
}

func (s *subscribers) add(o Observer) {
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]Observer)
	}
	s.subs[o.ID()] = o
	s.mu.Unlock()
}

func (s *subscribers) remove(o Observer) {
	s.mu.Lock()
	delete(s.subs, o.ID())
	s.mu.Unlock()
}

func (s *subscribers) snapshot() []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Observer, 0, len(s.subs))
	for _, o := range s.subs {
		out = append(out, o)
	}
	return out
}

func (s *subscribers) notify() {
	for _, o := range s.snapshot() {
		invalidateOrBatch(o)
	}
}

// State is a writable reactive cell.
type State[T any] struct {
	value T
	mu    sync.RWMutex
	subs  subscribers
}

// NewState creates a new reactive state
func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial}
}

// Get returns the current value and records it as a dependency of the
// observer being evaluated.
func (s *State[T]) Get() T {
	if t := currentTracker(); t != nil {
		s.subs.add(t)
		t.track(s)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Peek returns the value without recording a dependency.
func (s *State[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and invalidates every observer that read it.
func (s *State[T]) Set(value T) {
	if debugLog != nil {
		debugLog("[State] Set called with value:", value)
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	s.subs.notify()
}

// Update atomically reads, modifies, and writes the value
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	s.mu.Unlock()
	s.subs.notify()
}

func (s *State[T]) unsubscribe(o Observer) { s.subs.remove(o) }

// Computed is a memoized getter. It re-runs lazily on the first read after
// any cell it read during its last evaluation changes.
type Computed[T any] struct {
	id      uint64
	compute func() T
	value   T
	valid   bool
	mu      sync.Mutex

	srcMu   sync.Mutex
	sources []source

	subs subscribers
}

// NewComputed creates a new computed value
func NewComputed[T any](compute func() T) *Computed[T] {
	return &Computed[T]{id: newID(), compute: compute}
}

// ID implements Observer.
func (c *Computed[T]) ID() uint64 { return c.id }

// Get returns the computed value, recalculating if necessary
func (c *Computed[T]) Get() T {
	if t := currentTracker(); t != nil {
		c.subs.add(t)
		t.track(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		c.detach()
		withTracker(c, func() {
			c.value = c.compute()
		})
		c.valid = true
	}
	return c.value
}

// Valid reports whether the memoized value is current.
func (c *Computed[T]) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Invalidate marks the computed value as needing recalculation and passes
// the invalidation on to its own observers.
func (c *Computed[T]) Invalidate() {
	c.mu.Lock()
	was := c.valid
	c.valid = false
	c.mu.Unlock()
	if was {
		c.subs.notify()
	}
}

func (c *Computed[T]) track(src source) {
	c.srcMu.Lock()
	c.sources = append(c.sources, src)
	c.srcMu.Unlock()
}

func (c *Computed[T]) detach() {
	c.srcMu.Lock()
	srcs := c.sources
	c.sources = nil
	c.srcMu.Unlock()
	for _, s := range srcs {
		s.unsubscribe(c)
	}
}

func (c *Computed[T]) unsubscribe(o Observer) { c.subs.remove(o) }

// Watcher re-runs a function whenever a cell it read changes. Runs are
// serialized; a change made by the watcher's own run queues one more pass.
type Watcher struct {
	id      uint64
	fn      func()
	stopped atomic.Bool

	runMu sync.Mutex
	owner atomic.Uint64
	dirty atomic.Bool

	srcMu   sync.Mutex
	sources []source
}

// Watch runs fn now and again after every change to a cell fn read.
func Watch(fn func()) *Watcher {
	w := &Watcher{id: newID(), fn: fn}
	w.run()
	return w
}

// ID implements Observer.
func (w *Watcher) ID() uint64 { return w.id }

// Invalidate implements Observer.
func (w *Watcher) Invalidate() {
	if w.stopped.Load() {
		return
	}
	w.run()
}

// Stop detaches the watcher from everything it read.
func (w *Watcher) Stop() {
	w.stopped.Store(true)
	w.detach()
}

func (w *Watcher) run() {
	id := goid()
	if w.owner.Load() == id {
		w.dirty.Store(true)
		return
	}
	w.runMu.Lock()
	defer w.runMu.Unlock()
	w.owner.Store(id)
	defer w.owner.Store(0)
	for {
		w.dirty.Store(false)
		w.detach()
		withTracker(w, w.fn)
		if !w.dirty.Load() || w.stopped.Load() {
			return
		}
	}
}

func (w *Watcher) track(src source) {
	w.srcMu.Lock()
	w.sources = append(w.sources, src)
	w.srcMu.Unlock()
}

func (w *Watcher) detach() {
	w.srcMu.Lock()
	srcs := w.sources
	w.sources = nil
	w.srcMu.Unlock()
	for _, s := range srcs {
		s.unsubscribe(w)
	}
}

func (w *Watcher) deferred() {}

// Batch defers watcher re-runs until the batch completes, running each
// watcher at most once. Computed values are still invalidated immediately so
// reads inside the batch never see stale memos.
type Batch struct {
	pending map[uint64]Observer
	order   []uint64
	mu      sync.Mutex
	active  bool
}

// Add queues an observer.
func (b *Batch) Add(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[o.ID()]; ok {
		return
	}
	b.pending[o.ID()] = o
	b.order = append(b.order, o.ID())
}

// Commit delivers all queued invalidations.
func (b *Batch) Commit() {
	b.mu.Lock()
	b.active = false
	obs := make([]Observer, 0, len(b.order))
	for _, id := range b.order {
		obs = append(obs, b.pending[id])
	}
	b.pending = nil
	b.order = nil
	b.mu.Unlock()

	for _, o := range obs {
		o.Invalidate()
	}
}

// RunBatch executes fn, delaying watcher re-runs until it returns. Only
// writes made on the calling goroutine join the batch.
func RunBatch(fn func()) {
	batch := &Batch{pending: make(map[uint64]Observer), active: true}
	batching.Add(1)
	restore := swap(&batches, goid(), batch)
	defer func() {
		restore()
		batching.Add(-1)
		batch.Commit()
	}()
	fn()
}

func currentBatch() *Batch {
	if batching.Load() == 0 {
		return nil
	}
	b, _ := batches.Load(goid())
	batch, _ := b.(*Batch)
	return batch
}

func invalidateOrBatch(o Observer) {
	_, deferrable := o.(interface{ deferred() })
	if !deferrable {
		o.Invalidate()
		return
	}
	if batch := currentBatch(); batch != nil && batch.active {
		if debugLog != nil {
			debugLog("[State] Adding observer to batch", o.ID())
		}
		batch.Add(o)
		return
	}
	o.Invalidate()
}
