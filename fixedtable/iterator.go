package fixedtable

import "github.com/nomasters/shelf/errors"

// errCursorOutOfRange is returned by Wait on a cursor positioned before
// slot 0; there is no slot to block on.
const errCursorOutOfRange = errors.Error("shelf: fixedtable: iterator cursor is out of range")

// Iterator is a random-access cursor over a Table[T]. It stores the
// table pointer and a cursor, never a pointer into the mapped payload,
// so it stays valid across a remap triggered by a concurrent Push.
//
// Arithmetic wraps modulo signed 64-bit, matching the contract that
// cursor arithmetic is defined but dereferencing beyond Size() is not.
// Value at a cursor past the end behaves as Table[T].At does: it grows
// the mapping to reach the slot (extending the file on a ReadWrite
// handle, blocking on a handle that cannot drive growth) and then
// reports ok==false; it does not panic.
type Iterator[T any] struct {
	table  *Table[T]
	cursor int64
}

// Iterator returns a cursor positioned at slot 0.
func (t *Table[T]) Iterator() *Iterator[T] {
	return &Iterator[T]{table: t, cursor: 0}
}

// IteratorAt returns a cursor positioned at the given slot, which may be
// negative or beyond the current size; it only becomes meaningful once
// dereferenced.
func (t *Table[T]) IteratorAt(cursor int64) *Iterator[T] {
	return &Iterator[T]{table: t, cursor: cursor}
}

// Index returns the cursor's current slot.
func (it *Iterator[T]) Index() int64 { return it.cursor }

// Add returns a new cursor offset by n slots; it does not mutate it.
func (it *Iterator[T]) Add(n int64) *Iterator[T] {
	return &Iterator[T]{table: it.table, cursor: it.cursor + n}
}

// Next returns a cursor one slot ahead.
func (it *Iterator[T]) Next() *Iterator[T] { return it.Add(1) }

// Prev returns a cursor one slot behind.
func (it *Iterator[T]) Prev() *Iterator[T] { return it.Add(-1) }

// Equal compares two cursors by cursor value, with table identity as a
// tie-break: two iterators over different tables are never equal even
// if their cursors match.
func (it *Iterator[T]) Equal(other *Iterator[T]) bool {
	return it.table == other.table && it.cursor == other.cursor
}

// HasValue reports whether the slot this cursor names currently holds a
// published value.
func (it *Iterator[T]) HasValue() bool {
	if it.cursor < 0 {
		return false
	}
	return it.table.HasValue(uint64(it.cursor))
}

// Value returns the value at this cursor's slot, as Table[T].At does.
func (it *Iterator[T]) Value() (T, bool) {
	if it.cursor < 0 {
		var zero T
		return zero, false
	}
	return it.table.At(uint64(it.cursor))
}

// Wait blocks until this cursor's slot is published, as Table[T].Wait
// does.
func (it *Iterator[T]) Wait() (T, error) {
	if it.cursor < 0 {
		var zero T
		return zero, errCursorOutOfRange
	}
	return it.table.Wait(uint64(it.cursor))
}
