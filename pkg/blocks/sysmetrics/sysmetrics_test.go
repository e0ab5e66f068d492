package sysmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

func env(name string, fields config.Fields) blocks.Env {
	return blocks.Env{ID: bar.Identity{Name: name, Instance: "0"}, Fields: fields}
}

// --- Formatting helpers ---

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1536, "1.5KiB"},
		{5 * 1024 * 1024, "5.0MiB"},
		{uint64(7.5 * 1024 * 1024 * 1024), "7.5GiB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0TiB"},
	}
	for _, tt := range tests {
		if got := smFormatBytes(tt.in); got != tt.want {
			t.Errorf("smFormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{45 * time.Minute, "45m"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{14*24*time.Hour + 6*time.Hour + 23*time.Minute, "14d 6h 23m"},
		{24 * time.Hour, "1d 0h 0m"},
	}
	for _, tt := range tests {
		if got := smFormatUptime(tt.in); got != tt.want {
			t.Errorf("smFormatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBarchart(t *testing.T) {
	if got := smBarchart([]float64{0, 50, 100, -3, 250}); got != "▁▅█▁█" {
		t.Errorf("smBarchart = %q", got)
	}
}

func TestThresholds(t *testing.T) {
	th := thresholds{info: 30, warning: 60, critical: 90}
	tests := map[float64]bar.State{
		10:  bar.StateIdle,
		30:  bar.StateInfo,
		75:  bar.StateWarning,
		90:  bar.StateCritical,
		100: bar.StateCritical,
	}
	for v, want := range tests {
		if got := th.state(v); got != want {
			t.Errorf("state(%v) = %v, want %v", v, got, want)
		}
	}
	if got := (thresholds{}).state(99); got != bar.StateIdle {
		t.Errorf("zero thresholds state = %v, want idle", got)
	}
}

func TestIsVirtualFS(t *testing.T) {
	for _, fs := range []string{"tmpfs", "proc", "overlay", "squashfs"} {
		if !isVirtualFS(fs) {
			t.Errorf("isVirtualFS(%q) = false", fs)
		}
	}
	for _, fs := range []string{"ext4", "apfs", "btrfs", "xfs"} {
		if isVirtualFS(fs) {
			t.Errorf("isVirtualFS(%q) = true", fs)
		}
	}
}

// --- Block tests with injected readings ---

func TestCPUBlock(t *testing.T) {
	b, err := NewCPU(env(CPUType, config.Fields{"format": "{utilization}% {count} {barchart}"}))
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	c := b.(*CPU)
	if c.Interval() != DefaultCPUInterval {
		t.Errorf("Interval = %v", c.Interval())
	}
	c.read = func(context.Context) (CPUMetrics, error) {
		return CPUMetrics{Cores: []float64{10, 90}, Total: 64.6}, nil
	}
	seg, err := c.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seg[0].Text != "65% 2 ▁█" {
		t.Errorf("Text = %q", seg[0].Text)
	}
	if seg[0].State != bar.StateWarning {
		t.Errorf("State = %v, want warning", seg[0].State)
	}
}

func TestCPUBlockError(t *testing.T) {
	b, _ := NewCPU(env(CPUType, nil))
	c := b.(*CPU)
	c.read = func(context.Context) (CPUMetrics, error) { return CPUMetrics{}, errors.New("boom") }
	if _, err := c.Update(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestMemoryToggle(t *testing.T) {
	b, err := NewMemory(env(MemoryType, nil))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	m := b.(*Memory)
	calls := 0
	m.read = func(context.Context) (MemoryMetrics, error) {
		calls++
		return MemoryMetrics{
			Total:           8 * 1024 * 1024 * 1024,
			Used:            4 * 1024 * 1024 * 1024,
			UsedPercent:     50,
			SwapTotal:       2 * 1024 * 1024 * 1024,
			SwapUsed:        2 * 1024 * 1024 * 1024,
			SwapUsedPercent: 100,
		}, nil
	}

	// Clicking before any reading flips the view but has nothing to show.
	if _, changed, _ := m.Click(context.Background(), protocol.ClickEvent{Button: protocol.ButtonLeft}); changed {
		t.Error("click before first update should not change the segment")
	}
	_, _, _ = m.Click(context.Background(), protocol.ClickEvent{Button: protocol.ButtonLeft})

	seg, _ := m.Update(context.Background())
	if seg[0].Text != "4.0GiB/8.0GiB (50%)" || seg[0].Icon != "memory_mem" {
		t.Errorf("memory view = %q icon %q", seg[0].Text, seg[0].Icon)
	}
	if seg[0].State != bar.StateIdle {
		t.Errorf("memory state = %v", seg[0].State)
	}

	seg, changed, err := m.Click(context.Background(), protocol.ClickEvent{Button: protocol.ButtonLeft})
	if err != nil || !changed {
		t.Fatalf("click: changed=%v err=%v", changed, err)
	}
	if seg[0].Text != "2.0GiB/2.0GiB (100%)" || seg[0].Icon != "memory_swap" {
		t.Errorf("swap view = %q icon %q", seg[0].Text, seg[0].Icon)
	}
	if seg[0].State != bar.StateCritical {
		t.Errorf("swap state = %v", seg[0].State)
	}
	if calls != 1 {
		t.Errorf("click re-read metrics: calls = %d", calls)
	}

	if _, changed, _ := m.Click(context.Background(), protocol.ClickEvent{Button: protocol.ButtonRight}); changed {
		t.Error("right click should be ignored")
	}
}

func TestLoadBlock(t *testing.T) {
	b, err := NewLoad(env(LoadType, config.Fields{"format": "{load1} {load5} {load15} up {uptime}"}))
	if err != nil {
		t.Fatalf("NewLoad: %v", err)
	}
	l := b.(*Load)
	l.levels = thresholds{info: 1.2, warning: 2.4, critical: 3.6}
	l.read = func(context.Context) (LoadMetrics, error) {
		return LoadMetrics{Load1: 2.5, Load5: 1, Load15: 0.25, Uptime: 26 * time.Hour}, nil
	}
	seg, err := l.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seg[0].Text != "2.50 1.00 0.25 up 1d 2h 0m" {
		t.Errorf("Text = %q", seg[0].Text)
	}
	if seg[0].State != bar.StateWarning {
		t.Errorf("State = %v", seg[0].State)
	}
}

func TestDiskBlock(t *testing.T) {
	b, err := NewDisk(env(DiskType, config.Fields{"path": "/data", "format": "{path} {used_percent}%", "max_width": 12}))
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	d := b.(*Disk)
	if d.Interval() != DefaultDiskInterval {
		t.Errorf("Interval = %v", d.Interval())
	}
	var gotPath string
	d.read = func(_ context.Context, path string) (DiskMetrics, error) {
		gotPath = path
		return DiskMetrics{Path: path, UsedPercent: 96.2}, nil
	}
	seg, _ := d.Update(context.Background())
	if gotPath != "/data" {
		t.Errorf("read path = %q", gotPath)
	}
	if seg[0].Text != "/data 96%" || seg[0].State != bar.StateCritical {
		t.Errorf("segment = %+v", seg[0])
	}
}

func TestBadFormats(t *testing.T) {
	factories := map[string]blocks.Factory{
		CPUType:    NewCPU,
		MemoryType: NewMemory,
		LoadType:   NewLoad,
		DiskType:   NewDisk,
		NetType:    NewNet,
	}
	for name, f := range factories {
		if _, err := f(env(name, config.Fields{"format": "{nope}"})); err == nil {
			t.Errorf("%s: expected unknown placeholder error", name)
		}
	}
}

// --- net ---

func TestClassifyNIC(t *testing.T) {
	tests := []struct {
		name, goos, want string
	}{
		{"lo", "linux", "loopback"},
		{"lo0", "darwin", "loopback"},
		{"tailscale0", "linux", "tailscale"},
		{"docker0", "linux", "virtual"},
		{"veth1234", "linux", "virtual"},
		{"eth0", "linux", "ethernet"},
		{"enp3s0", "linux", "ethernet"},
		{"wlp2s0", "linux", "wifi"},
		{"wwan0", "linux", "wifi"},
		{"en0", "darwin", "ethernet"},
		{"awdl0", "darwin", "wifi"},
		{"utun3", "darwin", "virtual"},
		{"tun0", "linux", "virtual"},
	}
	for _, tt := range tests {
		if got := classifyNIC(tt.name, tt.goos); got != tt.want {
			t.Errorf("classifyNIC(%q, %q) = %q, want %q", tt.name, tt.goos, got, tt.want)
		}
	}
}

func TestStripMask(t *testing.T) {
	for in, want := range map[string]string{
		"192.168.1.10/24": "192.168.1.10",
		"fe80::1/64":      "fe80::1",
		"10.0.0.1":        "10.0.0.1",
	} {
		if got := stripMask(in); got != want {
			t.Errorf("stripMask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPickNIC(t *testing.T) {
	nics := []NICInfo{
		{Name: "lo", Kind: "loopback", Up: true, IPv4: "127.0.0.1"},
		{Name: "docker0", Kind: "virtual", Up: true, IPv4: "172.17.0.1"},
		{Name: "eth0", Kind: "ethernet", Up: false},
		{Name: "wlp2s0", Kind: "wifi", Up: true, IPv4: "192.168.1.20"},
	}
	if nic, ok := pickNIC(nics, ""); !ok || nic.Name != "wlp2s0" {
		t.Errorf("pickNIC(auto) = %+v, %v", nic, ok)
	}
	if nic, ok := pickNIC(nics, "eth0"); !ok || nic.Name != "eth0" {
		t.Errorf("pickNIC(eth0) = %+v, %v", nic, ok)
	}
	if _, ok := pickNIC(nics, "eth9"); ok {
		t.Error("pickNIC(eth9) found a device")
	}
	if _, ok := pickNIC(nics[:3], ""); ok {
		t.Error("pickNIC picked a non-physical interface")
	}
}

func TestNetBlockRates(t *testing.T) {
	b, err := NewNet(env(NetType, config.Fields{"format": "{device} {ip} {down} {up}"}))
	if err != nil {
		t.Fatalf("NewNet: %v", err)
	}
	n := b.(*Net)
	if n.Interval() != DefaultNetInterval {
		t.Errorf("Interval = %v", n.Interval())
	}

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	nic := NICInfo{Name: "eth0", Kind: "ethernet", Up: true, IPv4: "10.0.0.5", BytesRecv: 1000, BytesSent: 500}
	n.read = func(context.Context) ([]NICInfo, error) { return []NICInfo{nic}, nil }

	seg, err := n.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seg[0].Text != "eth0 10.0.0.5 0B/s 0B/s" || seg[0].State != bar.StateGood {
		t.Errorf("first segment = %+v", seg[0])
	}

	now = now.Add(2 * time.Second)
	nic.BytesRecv += 4096
	nic.BytesSent += 2048
	seg, _ = n.Update(context.Background())
	if seg[0].Text != "eth0 10.0.0.5 2.0KiB/s 1.0KiB/s" {
		t.Errorf("second segment = %q", seg[0].Text)
	}

	// Counter reset reports zero instead of wrapping.
	now = now.Add(2 * time.Second)
	nic.BytesRecv = 10
	seg, _ = n.Update(context.Background())
	if seg[0].Text != "eth0 10.0.0.5 0B/s 0B/s" {
		t.Errorf("after reset = %q", seg[0].Text)
	}
}

func TestNetBlockDown(t *testing.T) {
	b, _ := NewNet(env(NetType, config.Fields{"device": "eth0"}))
	n := b.(*Net)

	n.read = func(context.Context) ([]NICInfo, error) {
		return []NICInfo{{Name: "eth0", Kind: "ethernet", Up: false}}, nil
	}
	seg, _ := n.Update(context.Background())
	if seg[0].Text != "eth0 down" || seg[0].State != bar.StateCritical {
		t.Errorf("down segment = %+v", seg[0])
	}

	n.read = func(context.Context) ([]NICInfo, error) { return nil, nil }
	seg, _ = n.Update(context.Background())
	if seg[0].Text != "eth0 down" || seg[0].State != bar.StateCritical {
		t.Errorf("missing segment = %+v", seg[0])
	}

	n.read = func(context.Context) ([]NICInfo, error) {
		return []NICInfo{{Name: "eth0", Kind: "ethernet", Up: true}}, nil
	}
	seg, _ = n.Update(context.Background())
	if seg[0].State != bar.StateWarning {
		t.Errorf("no address state = %v", seg[0].State)
	}

	n.read = func(context.Context) ([]NICInfo, error) { return nil, errors.New("netlink") }
	if _, err := n.Update(context.Background()); err == nil {
		t.Error("expected read error")
	}
}

// --- Integration tests (run on actual host) ---

func TestHostReadings(t *testing.T) {
	ctx := context.Background()

	m, err := readMemory(ctx)
	if err != nil {
		t.Fatalf("readMemory: %v", err)
	}
	if m.Total == 0 {
		t.Error("Memory.Total = 0")
	}
	if m.UsedPercent < 0 || m.UsedPercent > 100 {
		t.Errorf("Memory.UsedPercent = %f, want 0-100", m.UsedPercent)
	}

	c, err := readCPU(ctx)
	if err != nil {
		t.Fatalf("readCPU: %v", err)
	}
	for i, pct := range c.Cores {
		if pct < 0 || pct > 100 {
			t.Errorf("Cores[%d] = %f, want 0-100", i, pct)
		}
	}

	if nics, err := readNICs(ctx); err != nil {
		t.Logf("readNICs unavailable: %v", err)
	} else if len(nics) == 0 {
		t.Log("no network interfaces")
	}

	if d, err := readDisk(ctx, "/"); err != nil {
		t.Logf("readDisk(/) unavailable: %v", err)
	} else if d.Total == 0 {
		t.Error("Disk.Total = 0 for /")
	}
}
