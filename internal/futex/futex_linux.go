//go:build linux

package futex

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWakeAll is passed as the "number of waiters to wake" argument.
// There is no hard limit on concurrent openers of a shelf table, so we
// ask the kernel to wake every waiter queued on the address.
const futexWakeAll = 1<<31 - 1

// wait and wake deliberately avoid FUTEX_PRIVATE_FLAG: a private futex is
// an optimization that assumes the word is only ever touched by threads
// of a single process, which does not hold here — multiple processes map
// the same header page and must be able to wake each other.
func wait(addr *uint32, expect uint32) {
	for atomic.LoadUint32(addr) == expect {
		_, _, errno := unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			uintptr(unix.FUTEX_WAIT),
			uintptr(expect),
			0, 0, 0,
		)
		switch errno {
		case 0, unix.EAGAIN, unix.EINTR:
			// EAGAIN: value changed between our load and the syscall's
			// own check, spurious wakeup, or signal interruption — loop
			// and re-check the real condition either way.
		default:
			return
		}
	}
}

func wake(addr *uint32) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(futexWakeAll),
		0, 0, 0,
	)
}
