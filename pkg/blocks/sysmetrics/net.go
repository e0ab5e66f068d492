package sysmetrics

import (
	"context"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// NetType is the configuration name of the net block.
const NetType = "net"

const (
	DefaultNetFormat     = "{ip} {down} {up}"
	DefaultNetFormatDown = "{device} down"
	DefaultNetInterval   = 5 * time.Second
)

var netPlaceholders = []string{"device", "kind", "ip", "ipv6", "mac", "down", "up", "total_down", "total_up"}

// NetConfig holds the net block keys. An empty device picks the first
// ethernet or wifi interface that is up and has an IPv4 address.
type NetConfig struct {
	Device     string          `toml:"device"`
	Format     string          `toml:"format"`
	FormatDown string          `toml:"format_down"`
	Interval   config.Duration `toml:"interval"`
	MaxWidth   int             `toml:"max_width"`
}

// NICInfo describes one network interface and its byte counters.
type NICInfo struct {
	Name      string
	Kind      string // "ethernet", "wifi", "tailscale", "loopback", "virtual"
	MAC       string
	IPv4      string
	IPv6      string
	Up        bool
	BytesRecv uint64
	BytesSent uint64
}

// Net shows the address and throughput of one interface.
type Net struct {
	device     string
	format     *blocks.Format
	formatDown *blocks.Format
	interval   time.Duration

	mu       sync.Mutex
	prevName string
	prevRecv uint64
	prevSent uint64
	prevAt   time.Time

	read func(context.Context) ([]NICInfo, error)
	now  func() time.Time
}

// NewNet is the blocks.Factory for "net".
func NewNet(env blocks.Env) (bar.Block, error) {
	cfg := NetConfig{Format: DefaultNetFormat, FormatDown: DefaultNetFormatDown}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, netPlaceholders...)
	if err != nil {
		return nil, err
	}
	down, err := blocks.ParseFormat(cfg.FormatDown, netPlaceholders...)
	if err != nil {
		return nil, err
	}
	return &Net{
		device:     cfg.Device,
		format:     f.WithMaxWidth(cfg.MaxWidth),
		formatDown: down.WithMaxWidth(cfg.MaxWidth),
		interval:   blocks.Interval(cfg.Interval, DefaultNetInterval),
		read:       readNICs,
		now:        time.Now,
	}, nil
}

func (n *Net) Interval() time.Duration { return n.interval }

func (n *Net) Update(ctx context.Context) (bar.Segment, error) {
	nics, err := n.read(ctx)
	if err != nil {
		return nil, err
	}
	nic, ok := pickNIC(nics, n.device)
	if !ok {
		name := n.device
		if name == "" {
			name = "net"
		}
		return bar.Segment{{
			Text:  n.formatDown.Render(map[string]string{"device": name}),
			Icon:  "net",
			State: bar.StateCritical,
		}}, nil
	}

	values := map[string]string{
		"device":     nic.Name,
		"kind":       nic.Kind,
		"ip":         nic.IPv4,
		"ipv6":       nic.IPv6,
		"mac":        nic.MAC,
		"total_down": smFormatBytes(nic.BytesRecv),
		"total_up":   smFormatBytes(nic.BytesSent),
	}
	rx, tx := n.rates(nic)
	values["down"] = smFormatBytes(rx) + "/s"
	values["up"] = smFormatBytes(tx) + "/s"

	if !nic.Up {
		return bar.Segment{{
			Text:  n.formatDown.Render(values),
			Icon:  "net",
			State: bar.StateCritical,
		}}, nil
	}

	state := bar.StateGood
	if nic.IPv4 == "" && nic.IPv6 == "" {
		state = bar.StateWarning
	}
	return bar.Segment{{
		Text:  n.format.Render(values),
		Icon:  "net",
		State: state,
	}}, nil
}

// rates returns bytes per second since the previous reading of the same
// interface. The first reading, an interface switch and a counter reset all
// report zero.
func (n *Net) rates(nic NICInfo) (rx, tx uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if nic.Name == n.prevName && !n.prevAt.IsZero() {
		elapsed := now.Sub(n.prevAt).Seconds()
		if elapsed > 0 && nic.BytesRecv >= n.prevRecv && nic.BytesSent >= n.prevSent {
			rx = uint64(float64(nic.BytesRecv-n.prevRecv) / elapsed)
			tx = uint64(float64(nic.BytesSent-n.prevSent) / elapsed)
		}
	}
	n.prevName, n.prevRecv, n.prevSent, n.prevAt = nic.Name, nic.BytesRecv, nic.BytesSent, now
	return rx, tx
}

// pickNIC returns the named interface, or the first physical interface that
// is up with an IPv4 address.
func pickNIC(nics []NICInfo, device string) (NICInfo, bool) {
	if device != "" {
		for _, nic := range nics {
			if nic.Name == device {
				return nic, true
			}
		}
		return NICInfo{}, false
	}
	for _, nic := range nics {
		if nic.Up && nic.IPv4 != "" && (nic.Kind == "ethernet" || nic.Kind == "wifi") {
			return nic, true
		}
	}
	return NICInfo{}, false
}

func readNICs(ctx context.Context) ([]NICInfo, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]psnet.IOCountersStat, len(counters))
	for _, c := range counters {
		byName[c.Name] = c
	}

	nics := make([]NICInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		nic := NICInfo{
			Name:      iface.Name,
			Kind:      classifyNIC(iface.Name, runtime.GOOS),
			MAC:       iface.HardwareAddr,
			Up:        slices.Contains(iface.Flags, "up"),
			BytesRecv: byName[iface.Name].BytesRecv,
			BytesSent: byName[iface.Name].BytesSent,
		}
		for _, a := range iface.Addrs {
			ip := stripMask(a.Addr)
			switch {
			case ip == "":
			case strings.Contains(ip, ":"):
				if nic.IPv6 == "" {
					nic.IPv6 = ip
				}
			case nic.IPv4 == "":
				nic.IPv4 = ip
			}
		}
		nics = append(nics, nic)
	}
	return nics, nil
}

// classifyNIC guesses the interface kind from its name. goos is a parameter
// so both naming schemes can be tested anywhere.
func classifyNIC(name, goos string) string {
	lower := strings.ToLower(name)
	hasPrefix := func(prefixes ...string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
		return false
	}

	switch {
	case hasPrefix("lo"):
		return "loopback"
	case hasPrefix("tailscale"):
		return "tailscale"
	case hasPrefix("veth", "br-", "docker", "cni", "flannel", "vxlan", "virbr"):
		return "virtual"
	}

	if goos == "darwin" {
		switch {
		case hasPrefix("en"):
			return "ethernet"
		case hasPrefix("awdl", "llw", "ap"):
			return "wifi"
		}
		return "virtual"
	}

	switch {
	case hasPrefix("eth", "enp", "eno", "ens", "enx"):
		return "ethernet"
	case hasPrefix("wl", "ww"):
		return "wifi"
	}
	return "virtual"
}

// stripMask drops the prefix length from "192.168.1.1/24".
func stripMask(addr string) string {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}
