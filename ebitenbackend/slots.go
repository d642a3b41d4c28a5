package ebitenbackend

import "github.com/bits-and-blooms/bitset"

// --- Slot table ---

// slotTable stores values in reusable slots. A value in slot i is addressed
// by the handle i+1, so the zero handle never names a value. Released slots
// keep their storage and are handed out again lowest first.
type slotTable[T any] struct {
	used  bitset.BitSet
	items []T
}

// insert stores v in the lowest free slot and returns its handle.
func (t *slotTable[T]) insert(v T) uint32 {
	i, ok := t.used.NextClear(0)
	if !ok || i >= uint(len(t.items)) {
		i = uint(len(t.items))
		t.items = append(t.items, v)
	} else {
		t.items[i] = v
	}
	t.used.Set(i)
	return uint32(i) + 1
}

// get returns a pointer to the value of h, or nil when h is not live.
func (t *slotTable[T]) get(h uint32) *T {
	if h == 0 || !t.used.Test(uint(h-1)) {
		return nil
	}
	return &t.items[h-1]
}

// remove frees the slot of h and returns its value. It reports false when h
// is not live.
func (t *slotTable[T]) remove(h uint32) (T, bool) {
	var zero T
	if h == 0 || !t.used.Test(uint(h-1)) {
		return zero, false
	}
	v := t.items[h-1]
	t.items[h-1] = zero
	t.used.Clear(uint(h - 1))
	return v, true
}

// live returns the number of occupied slots.
func (t *slotTable[T]) live() int {
	return int(t.used.Count())
}

// capacity returns the number of slots ever allocated.
func (t *slotTable[T]) capacity() int {
	return len(t.items)
}

// each calls fn with the handle and value of every occupied slot in slot
// order.
func (t *slotTable[T]) each(fn func(h uint32, v *T)) {
	for i, ok := t.used.NextSet(0); ok; i, ok = t.used.NextSet(i + 1) {
		fn(uint32(i)+1, &t.items[i])
	}
}

// --- Buffer vec ---

// bufferVec is a growable CPU-side vector mirrored into a device copy. Writes
// go to the CPU side and become visible to drawing only after flush, the way
// a GPU buffer only sees data once it is uploaded.
type bufferVec[T any] struct {
	cpu    []T
	device []T
	dirty  bool
}

func (b *bufferVec[T]) len() int { return len(b.cpu) }

// set writes v at i, growing the vector with zero values when needed.
func (b *bufferVec[T]) set(i int, v T) {
	if i >= len(b.cpu) {
		b.cpu = append(b.cpu, make([]T, i+1-len(b.cpu))...)
	}
	b.cpu[i] = v
	b.dirty = true
}

// push appends values and returns the index of the first.
func (b *bufferVec[T]) push(vs ...T) int {
	start := len(b.cpu)
	b.cpu = append(b.cpu, vs...)
	b.dirty = true
	return start
}

// truncate drops every element at or past n.
func (b *bufferVec[T]) truncate(n int) {
	if n < len(b.cpu) {
		b.cpu = b.cpu[:n]
		b.dirty = true
	}
}

// flush copies the CPU side to the device side. It reports whether the device
// copy had to be reallocated, which would force a re-bind on a real GPU. The
// device capacity grows to max(2*cap, len).
func (b *bufferVec[T]) flush() (reallocated bool) {
	if !b.dirty {
		return false
	}
	b.dirty = false
	if len(b.cpu) > cap(b.device) {
		b.device = make([]T, len(b.cpu), max(2*cap(b.device), len(b.cpu)))
		reallocated = true
	} else {
		b.device = b.device[:len(b.cpu)]
	}
	copy(b.device, b.cpu)
	return reallocated
}

// view returns the device copy in [start, end), or nil when the range has not
// been flushed yet.
func (b *bufferVec[T]) view(start, end int) []T {
	if start < 0 || end > len(b.device) || start > end {
		return nil
	}
	return b.device[start:end]
}
