//go:build linux

package bar

import (
	"os"

	"golang.org/x/sys/unix"
)

// sigRTMin is SIGRTMIN as seen by programs linked against glibc or musl;
// the kernel's first two realtime signals are reserved by the C library.
const sigRTMin = 34

// realtimeSignals maps SIGRTMIN+N to N for every offset in use.
func realtimeSignals(offsets []int) map[os.Signal]int {
	out := make(map[os.Signal]int, len(offsets))
	for _, n := range offsets {
		out[unix.Signal(sigRTMin+n)] = n
	}
	return out
}
