//go:build !linux

package bar

import "os"

// realtimeSignals returns nothing: realtime signals are Linux-only.
func realtimeSignals([]int) map[os.Signal]int { return nil }
