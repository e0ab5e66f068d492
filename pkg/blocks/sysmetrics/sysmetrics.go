// Package sysmetrics provides the cpu, memory, load, disk and net blocks. It uses
// gopsutil to read system metrics on both Darwin and Linux without /proc
// dependencies.
package sysmetrics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
)

// --- Metric data types ---

// CPUMetrics holds per-core and aggregate CPU utilisation.
type CPUMetrics struct {
	// Cores contains per-core usage percentages (0-100).
	Cores []float64

	// Total is the overall CPU usage percentage (0-100).
	Total float64
}

// MemoryMetrics holds physical and swap memory statistics.
type MemoryMetrics struct {
	Total           uint64
	Used            uint64
	Available       uint64
	Free            uint64
	SwapTotal       uint64
	SwapUsed        uint64
	UsedPercent     float64
	SwapUsedPercent float64
}

// DiskMetrics holds usage data for a single mount point.
type DiskMetrics struct {
	Path        string
	FSType      string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}

// LoadMetrics holds system load averages and uptime.
type LoadMetrics struct {
	Load1  float64
	Load5  float64
	Load15 float64
	Uptime time.Duration
}

// --- probes ---

func readCPU(ctx context.Context) (CPUMetrics, error) {
	// interval=0 compares against the previous call.
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return CPUMetrics{}, err
	}
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPUMetrics{}, err
	}

	m := CPUMetrics{Cores: perCore}
	if len(total) > 0 {
		m.Total = total[0]
	}
	return m, nil
}

func readMemory(ctx context.Context) (MemoryMetrics, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryMetrics{}, err
	}
	m := MemoryMetrics{
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		Free:        vm.Free,
		UsedPercent: vm.UsedPercent,
	}

	// Swap might not be available; that is not an error.
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		m.SwapTotal = sw.Total
		m.SwapUsed = sw.Used
		if sw.Total > 0 {
			m.SwapUsedPercent = sw.UsedPercent
		}
	}
	return m, nil
}

func readLoad(ctx context.Context) (LoadMetrics, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return LoadMetrics{}, err
	}
	m := LoadMetrics{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	if secs, err := host.UptimeWithContext(ctx); err == nil {
		m.Uptime = time.Duration(secs) * time.Second
	}
	return m, nil
}

// readDisk returns usage for path, or for the fullest real partition when
// path is empty.
func readDisk(ctx context.Context, path string) (DiskMetrics, error) {
	if path != "" {
		return usage(ctx, path)
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return DiskMetrics{}, err
	}
	var fullest DiskMetrics
	found := false
	for _, p := range parts {
		if isVirtualFS(p.Fstype) {
			continue
		}
		d, err := usage(ctx, p.Mountpoint)
		if err != nil {
			continue // skip partitions that fail
		}
		if !found || d.UsedPercent > fullest.UsedPercent {
			fullest, found = d, true
		}
	}
	if !found {
		return DiskMetrics{}, fmt.Errorf("no real partitions found")
	}
	return fullest, nil
}

func usage(ctx context.Context, path string) (DiskMetrics, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskMetrics{}, err
	}
	return DiskMetrics{
		Path:        u.Path,
		FSType:      u.Fstype,
		Total:       u.Total,
		Used:        u.Used,
		Free:        u.Free,
		UsedPercent: u.UsedPercent,
	}, nil
}

// isVirtualFS returns true for filesystem types that do not represent real
// storage and should be skipped during enumeration.
func isVirtualFS(fstype string) bool {
	switch fstype {
	case "devfs", "devtmpfs", "tmpfs", "sysfs", "proc", "cgroup", "cgroup2",
		"autofs", "mqueue", "hugetlbfs", "debugfs", "tracefs", "securityfs",
		"pstore", "bpf", "fusectl", "configfs", "ramfs", "rpc_pipefs",
		"nfsd", "map", "devpts", "squashfs", "overlay":
		return true
	}
	return false
}

// --- thresholds ---

// thresholds maps a value to a block state. Zero disables a level.
type thresholds struct {
	info, warning, critical float64
}

func (t thresholds) state(v float64) bar.State {
	switch {
	case t.critical > 0 && v >= t.critical:
		return bar.StateCritical
	case t.warning > 0 && v >= t.warning:
		return bar.StateWarning
	case t.info > 0 && v >= t.info:
		return bar.StateInfo
	}
	return bar.StateIdle
}

// --- formatting helpers (prefixed with "sm" to avoid conflicts) ---

// smFormatBytes formats a byte count into a human-readable string with
// binary units (B, KiB, MiB, GiB, TiB).
func smFormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)

	switch {
	case bytes >= tb:
		return fmt.Sprintf("%.1fTiB", float64(bytes)/float64(tb))
	case bytes >= gb:
		return fmt.Sprintf("%.1fGiB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1fMiB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1fKiB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// smFormatUptime formats a duration into a human-readable string like
// "14d 6h 23m" or "2h 15m" or "45m".
func smFormatUptime(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}

	totalMinutes := int(d.Minutes())
	days := totalMinutes / (60 * 24)
	hours := (totalMinutes % (60 * 24)) / 60
	minutes := totalMinutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))

	return strings.Join(parts, " ")
}

// smFormatPercent formats a percentage without the sign, e.g. "73".
func smFormatPercent(pct float64) string {
	return fmt.Sprintf("%d", int(math.Round(pct)))
}

var smBarGlyphs = []rune("▁▂▃▄▅▆▇█")

// smBarchart renders one glyph per value, scaled 0-100.
func smBarchart(values []float64) string {
	var b strings.Builder
	for _, v := range values {
		idx := int(v / 100 * float64(len(smBarGlyphs)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(smBarGlyphs) {
			idx = len(smBarGlyphs) - 1
		}
		b.WriteRune(smBarGlyphs[idx])
	}
	return b.String()
}
