//go:build !linux

package futex

import (
	"sync/atomic"
	"time"
)

// wait falls back to a backoff poll on platforms with no exposed futex
// syscall: correct, but costlier than a futex, since every waiter burns
// CPU on a bounded sleep instead of parking until woken.
func wait(addr *uint32, expect uint32) {
	backoff := 50 * time.Microsecond
	const maxBackoff = 2 * time.Millisecond
	for atomic.LoadUint32(addr) == expect {
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// wake is a no-op: waiters on this platform are already polling.
func wake(addr *uint32) {}
