//go:build linux || darwin || freebsd

package idle

import "golang.org/x/sys/unix"

// schedYield asks the OS scheduler to run another ready thread on this
// CPU without the minimum-resolution cost of time.Sleep, matching the
// "~1µs" budget in spec §4.B more closely than the Go runtime's own
// Gosched (which only yields to other goroutines, not other OS threads).
func schedYield() {
	_ = unix.Sched_yield()
}
