// Package fixedtable implements the append-only, fixed-stride table at
// the center of shelf: a contiguous array of cells, each a one-shot
// ready flag plus a value, growable across processes via file.MappedFile.
package fixedtable

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/nomasters/shelf/errors"
	"github.com/nomasters/shelf/file"
	"github.com/nomasters/shelf/internal/futex"
	"github.com/nomasters/shelf/logger"
)

// cell is the payload unit: a ready flag followed by the value. ready is
// a uint32, wider than the single bit it needs, because it doubles as
// the futex word that Wait parks on — the futex syscall only operates
// on 4-byte-aligned words. The compiler places value immediately after
// it with whatever padding T's alignment requires; that padding is the
// "architecture-dependent constant" spec language anticipates, and it
// is stable for a given GOARCH because Go's struct layout rules are.
type cell[T any] struct {
	ready uint32
	value T
}

// Table is an append-only array of cells of T, backed by a single
// file.MappedFile. A *Table[T] is safe for concurrent use by multiple
// goroutines, matching file.MappedFile's own concurrency guarantee.
type Table[T any] struct {
	mf       *file.MappedFile
	cellSize uint64
	log      logger.Logger
}

// Create truncates (or creates) the file at path and maps it read-write
// as a Table[T] with room for capacitySlots cells before the first
// growth. log is an optional diagnostic sink for growth and shrink
// events; it defaults to logger.NewNoOp() if omitted, exactly as
// mmap.Store's Config.Logger defaults in the teacher.
func Create[T any](path string, capacitySlots uint64, log ...logger.Logger) (*Table[T], error) {
	return open[T](path, file.CreateOnly, capacitySlots, log)
}

// OpenOrCreate behaves like Create if no file exists at path yet, or
// opens the existing one read-write otherwise.
func OpenOrCreate[T any](path string, capacitySlots uint64, log ...logger.Logger) (*Table[T], error) {
	return open[T](path, file.OpenOrCreate, capacitySlots, log)
}

// Open maps an existing file at path in the given mode. capacitySlots
// is ignored; it only matters for the create paths.
func Open[T any](path string, mode file.Mode, log ...logger.Logger) (*Table[T], error) {
	return open[T](path, mode, 0, log)
}

func open[T any](path string, mode file.Mode, capacitySlots uint64, log []logger.Logger) (*Table[T], error) {
	if err := checkFixed[T](); err != nil {
		return nil, err
	}
	cs := cellSizeOf[T]()
	mf, err := file.Open(path, mode, capacitySlots*cs)
	if err != nil {
		return nil, err
	}
	return &Table[T]{mf: mf, cellSize: cs, log: resolveLogger(log)}, nil
}

// resolveLogger returns the first logger passed to an optional
// "log ...logger.Logger" parameter, or logger.NewNoOp() if none was
// given (or a literal nil was passed).
func resolveLogger(log []logger.Logger) logger.Logger {
	if len(log) > 0 && log[0] != nil {
		return log[0]
	}
	return logger.NewNoOp()
}

func cellSizeOf[T any]() uint64 {
	var c cell[T]
	return uint64(unsafe.Sizeof(c))
}

// checkFixed enforces spec's "T must be trivially copyable; pointers
// inside T are not interpreted" constraint, which Go generics cannot
// express in the type parameter list itself.
func checkFixed[T any]() error {
	t := reflect.TypeFor[T]()
	if containsPointer(t) {
		return fmt.Errorf("shelf: fixedtable: type %s contains a pointer-like field and cannot be stored by value across processes", t)
	}
	return nil
}

func containsPointer(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.String, reflect.Map,
		reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return containsPointer(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if containsPointer(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// Size returns the number of published slots.
func (t *Table[T]) Size() uint64 {
	return t.mf.Size() / t.cellSize
}

// Capacity returns the number of slots currently reachable without
// blocking for growth.
func (t *Table[T]) Capacity() uint64 {
	return t.mf.Capacity() / t.cellSize
}

// ShrinkToFit truncates the backing file down to exactly Size() slots.
func (t *Table[T]) ShrinkToFit() error {
	before := t.mf.Capacity()
	if err := t.mf.ShrinkToFit(); err != nil {
		t.log.Errorf("fixedtable: ShrinkToFit %s: %v", t.mf.Path(), err)
		return err
	}
	t.log.Infof("fixedtable: shrank %s: capacity %d -> %d bytes", t.mf.Path(), before, t.mf.Capacity())
	return nil
}

// Close releases the underlying mapping and file descriptor.
func (t *Table[T]) Close() error {
	return t.mf.Close()
}

// Push appends value and returns the slot it was assigned. The slot is
// allocated by a single fetch-add on the shared size counter: concurrent
// pushers from any process never collide on a slot.
func (t *Table[T]) Push(value T) (uint64, error) {
	raw := t.mf.AddSize(t.cellSize)
	slot := raw / t.cellSize

	needed := (slot + 1) * t.cellSize
	if needed > t.mf.Capacity() {
		t.log.Debugf("fixedtable: growing %s to hold slot %d", t.mf.Path(), slot)
	}
	if err := t.mf.EnsureCapacity(needed); err != nil {
		t.log.Errorf("fixedtable: growing %s: %v", t.mf.Path(), err)
		return slot, err
	}

	cellPtr := t.cellAt(slot)
	cellPtr.value = value
	atomic.StoreUint32(&cellPtr.ready, 1)
	futex.Wake(&cellPtr.ready)
	return slot, nil
}

// At returns the value at slot i and whether it has been published yet.
// A false second return with no error means the caller raced ahead of
// the writer; it is not a fault. If i is beyond this handle's mapping,
// At first runs EnsureCapacity for it, which remaps, extends the file on
// a ReadWrite handle, or blocks on a handle that cannot drive growth
// until a writer grows the file. It never waits for the value itself to
// become ready. Use Wait for that.
func (t *Table[T]) At(i uint64) (T, bool) {
	var zero T
	if err := t.mf.EnsureCapacity((i + 1) * t.cellSize); err != nil {
		return zero, false
	}
	cellPtr := t.cellAt(i)
	if atomic.LoadUint32(&cellPtr.ready) == 0 {
		return zero, false
	}
	return cellPtr.value, true
}

// HasValue reports whether slot i has a published value. An index at or
// beyond the current size is reported false immediately. A slot within
// size but beyond this handle's own locally mapped view — possible in
// the brief window between another writer's fetch-add and its own
// EnsureCapacity completing — is resolved by joining the same
// growth-protocol wait every other accessor uses, never by reading past
// the local mapping.
func (t *Table[T]) HasValue(i uint64) bool {
	if i >= t.Size() {
		return false
	}
	if err := t.mf.EnsureCapacity((i + 1) * t.cellSize); err != nil {
		return false
	}
	cellPtr := t.cellAt(i)
	return atomic.LoadUint32(&cellPtr.ready) == 1
}

// Value is a checked convenience wrapper over At: it returns
// errors.ErrBadAccess instead of a false ok, for call sites that would
// otherwise immediately turn !ok into an error themselves.
func (t *Table[T]) Value(i uint64) (T, error) {
	v, ok := t.At(i)
	if !ok {
		var zero T
		return zero, errors.ErrBadAccess
	}
	return v, nil
}

// Wait blocks until slot i has a published value, growing this handle's
// mapping as needed in the meantime. It tolerates spurious wakeups and
// re-checks the ready flag itself rather than trusting a single futex
// return.
func (t *Table[T]) Wait(i uint64) (T, error) {
	if err := t.mf.EnsureCapacity((i + 1) * t.cellSize); err != nil {
		var zero T
		return zero, err
	}
	cellPtr := t.cellAt(i)
	for atomic.LoadUint32(&cellPtr.ready) == 0 {
		futex.Wait(&cellPtr.ready, 0)
	}
	return cellPtr.value, nil
}

// cellAt returns a pointer to slot i within the current mapping. Like
// every pointer this package hands out, it is only valid until the next
// call that may trigger growth on this handle.
func (t *Table[T]) cellAt(i uint64) *cell[T] {
	payload := t.mf.Payload()
	offset := i * t.cellSize
	return (*cell[T])(unsafe.Pointer(&payload[offset]))
}
