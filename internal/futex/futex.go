// Package futex provides a minimal wait/notify primitive keyed on the
// address of a uint32, usable by both threads and processes that share
// the underlying memory via mmap(MAP_SHARED).
//
// This is the primitive spec.md's Design Notes call for: a futex, not a
// condition variable. Waiters must tolerate spurious wakeups and are
// expected to re-check their own condition in a loop; Wait returns as
// soon as *addr no longer equals expect, with no further guarantee about
// why.
package futex

// Wait blocks while *addr == expect and returns once the value has
// changed. A Wake call on the same address, or a poll interval on
// platforms with no native futex, only makes Wait re-check the value;
// it keeps blocking while the value still equals expect. On Linux it
// also returns if the futex syscall fails with an unexpected error.
func Wait(addr *uint32, expect uint32) { wait(addr, expect) }

// Wake releases every waiter currently blocked on addr.
func Wake(addr *uint32) { wake(addr) }
