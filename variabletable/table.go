// Package variabletable implements the variable-length record table: a
// fixedtable.Table of (offset, length) index entries addressing a byte
// heap held in its own file.MappedFile.
package variabletable

import (
	"os"

	"github.com/nomasters/shelf/errors"
	"github.com/nomasters/shelf/file"
	"github.com/nomasters/shelf/fixedtable"
	"github.com/nomasters/shelf/logger"
)

// indexSuffix is appended to the caller's chosen path to name the
// sibling index file. Both "i" and ".idb" have precedent; ".idb" is the
// suffix the C++ implementation this library's protocol was distilled
// from actually uses (LightMQ::variable::table), so new tables follow
// it rather than inventing a third convention.
const indexSuffix = ".idb"

// indexEntry is the inner fixedtable's element type: an (offset,
// length) pair into the heap, in bytes.
type indexEntry struct {
	offset uint64
	length uint64
}

// Table is a variable-length record store: push arbitrary byte slices,
// read them back by the id push returned. It is safe for concurrent use
// by multiple goroutines, like its two underlying MappedFiles.
type Table struct {
	index *fixedtable.Table[indexEntry]
	heap  *file.MappedFile
	log   logger.Logger
}

// Create truncates (or creates) path and its ".idb" sibling, sized for
// capacitySlots index entries and heapCapacity bytes of payload before
// the first growth of each. log is an optional diagnostic sink for heap
// growth and shrink events; it defaults to logger.NewNoOp() if omitted,
// exactly as mmap.Store's Config.Logger defaults in the teacher.
func Create(path string, capacitySlots, heapCapacity uint64, log ...logger.Logger) (*Table, error) {
	return open(path, file.CreateOnly, capacitySlots, heapCapacity, log)
}

// OpenOrCreate behaves like Create if neither file exists yet, or opens
// both existing files read-write otherwise.
func OpenOrCreate(path string, capacitySlots, heapCapacity uint64, log ...logger.Logger) (*Table, error) {
	return open(path, file.OpenOrCreate, capacitySlots, heapCapacity, log)
}

// Open maps an existing table (heap plus its ".idb" sibling) in the
// given mode.
func Open(path string, mode file.Mode, log ...logger.Logger) (*Table, error) {
	return open(path, mode, 0, 0, log)
}

// open routes to the index and heap MappedFiles consistently for a
// given mode: the two files must agree on create-vs-open, since probing
// each independently risks one half succeeding as a fresh create and
// the other as an open of stale state.
func open(path string, mode file.Mode, capacitySlots, heapCapacity uint64, log []logger.Logger) (*Table, error) {
	resolved := resolveLogger(log)
	switch mode {
	case file.CreateOnly:
		return createTables(path, capacitySlots, heapCapacity, resolved)
	case file.OpenOrCreate:
		_, idxErr := os.Stat(path + indexSuffix)
		_, heapErr := os.Stat(path)
		if os.IsNotExist(idxErr) && os.IsNotExist(heapErr) {
			return createTables(path, capacitySlots, heapCapacity, resolved)
		}
		return open(path, file.ReadWrite, 0, 0, log)
	default:
		idx, err := fixedtable.Open[indexEntry](path+indexSuffix, mode, resolved)
		if err != nil {
			return nil, err
		}
		heap, err := file.Open(path, mode, 0)
		if err != nil {
			idx.Close()
			return nil, err
		}
		return &Table{index: idx, heap: heap, log: resolved}, nil
	}
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

func createTables(path string, capacitySlots, heapCapacity uint64, log logger.Logger) (*Table, error) {
	idx, err := fixedtable.Create[indexEntry](path+indexSuffix, capacitySlots, log)
	if err != nil {
		return nil, err
	}
	heap, err := file.Open(path, file.CreateOnly, heapCapacity)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return &Table{index: idx, heap: heap, log: log}, nil
}

// Push byte-copies data into the heap and publishes an index entry
// pointing at it, returning the record id. The heap write always
// happens-before the index publication, so any consumer that observes
// the index entry is guaranteed to see the complete bytes.
func (t *Table) Push(data []byte) (uint64, error) {
	length := uint64(len(data))
	offset := t.heap.AddSize(length)
	if offset+length > t.heap.Capacity() {
		t.log.Debugf("variabletable: growing heap %s to hold %d bytes", t.heap.Path(), offset+length)
	}
	if err := t.heap.EnsureCapacity(offset + length); err != nil {
		t.log.Errorf("variabletable: growing heap %s: %v", t.heap.Path(), err)
		return 0, err
	}
	payload := t.heap.Payload()
	copy(payload[offset:offset+length], data)
	return t.index.Push(indexEntry{offset: offset, length: length})
}

// At returns the record at id, or ok=false if it has not been published
// yet (or if the index is too short to hold id at all).
func (t *Table) At(id uint64) ([]byte, bool) {
	e, ok := t.index.At(id)
	if !ok {
		return nil, false
	}
	return t.resolve(e)
}

// HasValue reports whether record id has been published.
func (t *Table) HasValue(id uint64) bool {
	return t.index.HasValue(id)
}

// Wait blocks until record id is published and returns its bytes.
func (t *Table) Wait(id uint64) ([]byte, error) {
	e, err := t.index.Wait(id)
	if err != nil {
		return nil, err
	}
	v, ok := t.resolve(e)
	if !ok {
		return nil, errors.ErrInvalidOffset
	}
	return v, nil
}

func (t *Table) resolve(e indexEntry) ([]byte, bool) {
	if err := t.heap.EnsureCapacity(e.offset + e.length); err != nil {
		return nil, false
	}
	payload := t.heap.Payload()
	if e.offset+e.length > uint64(len(payload)) {
		return nil, false
	}
	return payload[e.offset : e.offset+e.length], true
}

// Size returns the published record count and the number of heap bytes
// currently occupied.
func (t *Table) Size() (records, heapBytes uint64) {
	return t.index.Size(), t.heap.Size()
}

// Capacity returns the index's slot capacity and the heap's byte
// capacity, each reachable without blocking for growth.
func (t *Table) Capacity() (indexSlots, heapBytes uint64) {
	return t.index.Capacity(), t.heap.Capacity()
}

// ShrinkToFit truncates both the index and the heap down to their
// published sizes.
func (t *Table) ShrinkToFit() error {
	if err := t.index.ShrinkToFit(); err != nil {
		return err
	}
	before := t.heap.Capacity()
	if err := t.heap.ShrinkToFit(); err != nil {
		t.log.Errorf("variabletable: shrinking heap %s: %v", t.heap.Path(), err)
		return err
	}
	t.log.Infof("variabletable: shrank heap %s: capacity %d -> %d bytes", t.heap.Path(), before, t.heap.Capacity())
	return nil
}

// Close releases both underlying mappings and file descriptors.
func (t *Table) Close() error {
	err1 := t.index.Close()
	err2 := t.heap.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
