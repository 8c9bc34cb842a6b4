// Package file implements MappedFile, the append-only, growable,
// memory-mapped region every shelf table is built on. It owns the
// header (endian tag, size, capacity, grow lock) and the growth
// protocol: a single-grower/many-waiters CAS dance, coordinated through
// a futex word shared by every process with the file open.
package file

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nomasters/shelf/errors"
	"github.com/nomasters/shelf/internal/futex"
)

// MappedFile is a single process's handle onto a shelf table file. A
// *MappedFile is safe for concurrent use by multiple goroutines: every
// access to the current mapping is taken under mu, and growth never
// unmaps a mapping another goroutine might still be reading through —
// see extendMapping.
type MappedFile struct {
	mu   sync.RWMutex
	path string
	mode Mode
	file *os.File

	data    []byte   // header + payload, current (largest) mapping
	retired [][]byte // superseded mappings, unmapped only on Close

	// foreign is true when this file's endian_tag does not match
	// nativeEndianTag. Only ReadOnly, ReadPrivate and CopyOnWrite
	// handles are allowed to observe a foreign header; ReadWrite and
	// the create paths refuse to open one at all.
	foreign bool
}

// Open maps path according to mode. initialCapacity is the payload size,
// in bytes, a newly created file is given; it is ignored unless mode is
// CreateOnly or OpenOrCreate and the file does not already exist.
func Open(path string, mode Mode, initialCapacity uint64) (*MappedFile, error) {
	switch mode {
	case CreateOnly:
		return create(path, initialCapacity)
	case OpenOrCreate:
		if _, err := os.Stat(path); err == nil {
			return openExisting(path, ReadWrite)
		} else if os.IsNotExist(err) {
			return create(path, initialCapacity)
		} else {
			return nil, errors.NewIoError("stat", path, err)
		}
	case ReadWrite, ReadOnly, ReadPrivate, CopyOnWrite:
		return openExisting(path, mode)
	default:
		return nil, errors.ErrInvalidMode
	}
}

func create(path string, capacity uint64) (*MappedFile, error) {
	if capacity == 0 {
		capacity = 1
	}
	if err := ensureSecureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.NewIoError("create", path, err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return nil, errors.NewIoError("chmod", path, err)
	}
	total := int64(HeaderSize) + int64(capacity)
	if err := f.Truncate(total); err != nil {
		f.Close()
		return nil, errors.NewIoError("truncate", path, err)
	}
	data, err := mmapFile(f, total, ReadWrite)
	if err != nil {
		f.Close()
		return nil, err
	}
	mf := &MappedFile{path: path, mode: ReadWrite, file: f, data: data}
	mf.initHeader(capacity)
	return mf, nil
}

func (mf *MappedFile) initHeader(capacity uint64) {
	mf.data[offsetEndianTag] = nativeEndianTag
	atomic.StoreUint64((*uint64)(mf.ptr(offsetSize)), 0)
	atomic.StoreUint64((*uint64)(mf.ptr(offsetCapacity)), capacity)
	atomic.StoreUint32((*uint32)(mf.ptr(offsetGrowLock)), 0)
}

func openExisting(path string, mode Mode) (*MappedFile, error) {
	if err := validateExistingFile(path); err != nil {
		return nil, err
	}
	flags := os.O_RDWR
	if mode == ReadOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, errors.NewIoError("open", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewIoError("stat", path, err)
	}
	if st.Size() < HeaderSize {
		f.Close()
		return nil, errors.ErrCorrupted
	}
	data, err := mmapFile(f, st.Size(), mode)
	if err != nil {
		f.Close()
		return nil, err
	}
	mf := &MappedFile{path: path, mode: mode, file: f, data: data}
	if data[offsetEndianTag] != nativeEndianTag {
		if mode == ReadWrite {
			unix.Munmap(data)
			f.Close()
			return nil, errors.ErrEndianMismatch
		}
		mf.foreign = true
	}
	return mf, nil
}

func mmapFile(f *os.File, length int64, mode Mode) ([]byte, error) {
	prot := unix.PROT_READ
	flags := unix.MAP_SHARED
	if mode.private() {
		flags = unix.MAP_PRIVATE
	}
	if mode.writable() {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(length), prot, flags)
	if err != nil {
		return nil, errors.NewIoError("mmap", f.Name(), err)
	}
	return data, nil
}

// Mode reports the mode this handle was opened with. CreateOnly and
// OpenOrCreate both normalize to ReadWrite once the file is mapped.
func (mf *MappedFile) Mode() Mode { return mf.mode }

// Foreign reports whether this file's header was written by a process
// of the opposite byte order. Only possible on ReadOnly, ReadPrivate
// and CopyOnWrite handles.
func (mf *MappedFile) Foreign() bool { return mf.foreign }

// Path returns the filesystem path this handle was opened from.
func (mf *MappedFile) Path() string { return mf.path }

// Size returns the header's size counter: the number of payload bytes
// allocated so far (fixedtable advances it by one cell's width per push,
// variabletable by each record's length).
func (mf *MappedFile) Size() uint64 {
	mf.mu.RLock()
	p := (*uint64)(mf.ptr(offsetSize))
	mf.mu.RUnlock()
	v := atomic.LoadUint64(p)
	if mf.foreign {
		return bits.ReverseBytes64(v)
	}
	return v
}

// AddSize atomically adds delta to the size counter and returns its
// value before the add. It is only meaningful on a ReadWrite handle.
func (mf *MappedFile) AddSize(delta uint64) uint64 {
	mf.mu.RLock()
	p := (*uint64)(mf.ptr(offsetSize))
	mf.mu.RUnlock()
	return atomic.AddUint64(p, delta) - delta
}

// Capacity returns the current payload capacity in bytes, as recorded
// in the header — which may exceed len(Payload()) momentarily, between
// a grower publishing the new value and this handle remapping to reach
// it. Use EnsureCapacity to block until the local mapping catches up.
func (mf *MappedFile) Capacity() uint64 {
	mf.mu.RLock()
	p := (*uint64)(mf.ptr(offsetCapacity))
	mf.mu.RUnlock()
	v := atomic.LoadUint64(p)
	if mf.foreign {
		return bits.ReverseBytes64(v)
	}
	return v
}

// Payload returns the mapped bytes following the header. Any call that
// may block on the growth protocol (EnsureCapacity, or a table
// operation built on it) invalidates previously returned slices: take a
// fresh one afterward. Indexing a stale slice beyond its own length
// panics rather than reading adjacent memory, since earlier mappings
// are kept alive (not unmapped) until Close.
func (mf *MappedFile) Payload() []byte {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	return mf.data[HeaderSize:]
}

// EnsureCapacity blocks until at least targetBytes of payload are
// reachable through this handle's local mapping, growing the backing
// file first if this handle is the one that wins the grow_lock race.
//
// The protocol, run in a loop until the target is met:
//  1. If this handle's mode permits driving growth, CAS grow_lock 0→1.
//     The winner doubles the file and republishes capacity — unless the
//     header capacity already differs from this handle's view, meaning
//     another handle grew it first — then clears grow_lock and wakes
//     every futex waiter.
//  2. Every handle — winner, loser, and any handle that arrived mid-CAS
//     — waits on the capacity futex word for the pre-round value to
//     change.
//  3. Every handle remaps to pick up the new file length.
func (mf *MappedFile) EnsureCapacity(targetBytes uint64) error {
	for {
		mf.mu.RLock()
		local := uint64(len(mf.data)) - HeaderSize
		mf.mu.RUnlock()
		if targetBytes <= local {
			return nil
		}
		if err := mf.growRound(local); err != nil {
			return err
		}
	}
}

func (mf *MappedFile) growRound(staleLocal uint64) error {
	mf.mu.RLock()
	growLock := (*uint32)(mf.ptr(offsetGrowLock))
	capWord := (*uint32)(mf.ptr(offsetCapacity))
	capFull := (*uint64)(mf.ptr(offsetCapacity))
	mf.mu.RUnlock()

	if mf.mode.canGrow() && atomic.CompareAndSwapUint32(growLock, 0, 1) {
		var growErr error
		if atomic.LoadUint64(capFull) == staleLocal {
			growErr = mf.recapacity(staleLocal)
		}
		atomic.StoreUint32(growLock, 0)
		futex.Wake(capWord)
		if growErr != nil {
			return growErr
		}
	}

	futex.Wait(capWord, uint32(staleLocal))
	return mf.extendMapping()
}

// canGrow reports whether this mode may drive the growth protocol's
// file-resize step. Readers still wait and remap; they never CAS
// grow_lock, which on a ReadOnly mapping is not even writable.
func (m Mode) canGrow() bool { return m == ReadWrite }

func (mf *MappedFile) recapacity(oldCap uint64) error {
	newCap := oldCap * 2
	total := int64(HeaderSize) + int64(newCap)

	mf.mu.RLock()
	f := mf.file
	mf.mu.RUnlock()

	if err := f.Truncate(total); err != nil {
		return errors.NewIoError("truncate", mf.path, err)
	}
	mf.mu.RLock()
	capPtr := (*uint64)(mf.ptr(offsetCapacity))
	mf.mu.RUnlock()
	atomic.StoreUint64(capPtr, newCap)
	return nil
}

// extendMapping creates a fresh mapping large enough to reach the
// current capacity field and installs it as mf.data, retiring (but not
// unmapping) the previous mapping. Mappings are retired rather than
// unmapped so that a goroutine still blocked in a cross-process futex
// wait on the old header address never has that address become
// invalid out from under it.
func (mf *MappedFile) extendMapping() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	capacity := atomic.LoadUint64((*uint64)(mf.ptr(offsetCapacity)))
	want := int64(HeaderSize) + int64(capacity)
	if int64(len(mf.data)) >= want {
		return nil
	}
	data, err := mmapFile(mf.file, want, mf.mode)
	if err != nil {
		return err
	}
	mf.retired = append(mf.retired, mf.data)
	mf.data = data
	return nil
}

// ShrinkToFit truncates the backing file down to header+size, discarding
// any capacity grown past the last published element. It is only valid
// on a ReadWrite handle with no other process holding a larger mapping
// open; callers are responsible for that coordination, as with any
// operation that changes a shared file's length.
func (mf *MappedFile) ShrinkToFit() error {
	if !mf.mode.canGrow() {
		return errors.ErrInvalidMode
	}
	size := mf.Size()

	mf.mu.Lock()
	defer mf.mu.Unlock()
	total := int64(HeaderSize) + int64(size)
	if err := mf.file.Truncate(total); err != nil {
		return errors.NewIoError("truncate", mf.path, err)
	}
	atomic.StoreUint64((*uint64)(mf.ptr(offsetCapacity)), size)
	data, err := mmapFile(mf.file, total, mf.mode)
	if err != nil {
		return err
	}
	mf.retired = append(mf.retired, mf.data)
	mf.data = data
	return nil
}

// Sync flushes the current mapping and the file's metadata to disk.
func (mf *MappedFile) Sync() error {
	mf.mu.RLock()
	data := mf.data
	mf.mu.RUnlock()
	if mf.mode.private() {
		return nil
	}
	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		return errors.NewIoError("msync", mf.path, err)
	}
	return mf.file.Sync()
}

// Close unmaps every mapping this handle ever created, current and
// retired, and closes the file descriptor. Close must not be called
// while another goroutine holds a reference obtained from Payload or is
// blocked inside EnsureCapacity.
func (mf *MappedFile) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, d := range mf.retired {
		note(errors.NewIoError("munmap", mf.path, unix.Munmap(d)))
	}
	mf.retired = nil
	if mf.data != nil {
		note(errors.NewIoError("munmap", mf.path, unix.Munmap(mf.data)))
		mf.data = nil
	}
	note(errors.NewIoError("close", mf.path, mf.file.Close()))
	return firstErr
}

func (mf *MappedFile) String() string {
	return fmt.Sprintf("file.MappedFile{path: %q, mode: %s}", mf.path, mf.mode)
}
