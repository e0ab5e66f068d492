// Package tailscale implements the "tailscale" block. It queries the local
// tailscaled daemon via the LocalAPI unix socket off the event loop and
// maps the ipnstate.Status response into a small Status struct for
// rendering.
package tailscale

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tailscale.com/client/local"
	"tailscale.com/ipn/ipnstate"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Type is the configuration name of this block.
const Type = "tailscale"

// Default configuration values.
const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultFormat   = "{online}/{total}"
)

var placeholders = []string{"online", "total", "hostname", "ip", "tailnet", "exit_node", "backend"}

// StatusClient abstracts the local Tailscale daemon API for testability.
// The real implementation is tailscale.com/client/local.Client, whose
// Status method satisfies this interface.
type StatusClient interface {
	Status(ctx context.Context) (*ipnstate.Status, error)
}

// Config holds the block-specific keys.
type Config struct {
	Interval config.Duration `toml:"interval"`
	Timeout  config.Duration `toml:"timeout"`
	Format   string          `toml:"format"`
	MaxWidth int             `toml:"max_width"`

	// SocketPath is an optional custom tailscaled socket path.
	// When empty, the platform default is used.
	SocketPath string `toml:"socket"`
}

// PeerInfo contains summarised information about a single Tailscale peer.
type PeerInfo struct {
	ID           string
	Hostname     string
	DNSName      string
	OS           string
	TailscaleIPs []string
	Online       bool
	ExitNode     bool
}

// Status is the result of one poll.
type Status struct {
	Backend     string
	Self        PeerInfo
	TailnetName string
	OnlinePeers int
	TotalPeers  int
	ExitNode    *PeerInfo
}

// Block shows the tailnet summary.
type Block struct {
	client   StatusClient
	waker    bar.Waker
	format   *blocks.Format
	interval time.Duration
	timeout  time.Duration
}

// New is the blocks.Factory for "tailscale".
func New(env blocks.Env) (bar.Block, error) {
	cfg := Config{Format: DefaultFormat}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	return newBlock(env, cfg, NewLocalClient(cfg.SocketPath))
}

func newBlock(env blocks.Env, cfg Config, client StatusClient) (*Block, error) {
	if env.Waker == nil {
		return nil, fmt.Errorf("tailscale block needs a waker")
	}
	f, err := blocks.ParseFormat(cfg.Format, placeholders...)
	if err != nil {
		return nil, err
	}
	return &Block{
		client:   client,
		waker:    env.Waker,
		format:   f.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultInterval),
		timeout:  blocks.Interval(cfg.Timeout, DefaultTimeout),
	}, nil
}

func (b *Block) Interval() time.Duration { return b.interval }

// Update starts a poll off the loop; the result arrives through Consume.
func (b *Block) Update(ctx context.Context) (bar.Segment, error) {
	err := b.waker.Go(b.timeout, func(ctx context.Context) (any, error) {
		return b.collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return nil, bar.ErrDeferred
}

func (b *Block) Consume(ctx context.Context, payload any) (bar.Segment, error) {
	st, ok := payload.(*Status)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	return b.render(st), nil
}

// Click polls again on a left click.
func (b *Block) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if ev.Button == protocol.ButtonLeft {
		b.waker.Refresh()
	}
	return nil, false, nil
}

func (b *Block) collect(ctx context.Context) (*Status, error) {
	st, err := b.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailscale status: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("tailscale status: nil response")
	}
	return mapStatus(st), nil
}

func (b *Block) render(st *Status) bar.Segment {
	values := map[string]string{
		"online":   strconv.Itoa(st.OnlinePeers),
		"total":    strconv.Itoa(st.TotalPeers),
		"hostname": st.Self.Hostname,
		"tailnet":  st.TailnetName,
		"backend":  st.Backend,
	}
	if len(st.Self.TailscaleIPs) > 0 {
		values["ip"] = st.Self.TailscaleIPs[0]
	}
	if st.ExitNode != nil {
		values["exit_node"] = st.ExitNode.Hostname
	}

	p := bar.Part{Icon: "tailscale", State: bar.StateGood}
	switch {
	case st.Backend != "Running":
		p.Text = st.Backend
		p.State = bar.StateWarning
	default:
		p.Text = b.format.Render(values)
		if st.ExitNode != nil {
			p.State = bar.StateInfo
		}
	}
	return bar.Segment{p}
}

// mapStatus converts the ipnstate.Status into our simplified Status struct.
func mapStatus(st *ipnstate.Status) *Status {
	out := &Status{Backend: st.BackendState}
	if st.Self != nil {
		out.Self = mapPeerStatus(st.Self)
	}
	if st.CurrentTailnet != nil {
		out.TailnetName = st.CurrentTailnet.Name
	}

	// Peers() returns the sorted key order.
	for _, pubKey := range st.Peers() {
		ps := st.Peer[pubKey]
		if ps == nil {
			continue
		}
		pi := mapPeerStatus(ps)
		out.TotalPeers++
		if pi.Online {
			out.OnlinePeers++
		}
		if pi.ExitNode {
			p := pi
			out.ExitNode = &p
		}
	}
	return out
}

func mapPeerStatus(ps *ipnstate.PeerStatus) PeerInfo {
	pi := PeerInfo{
		ID:       string(ps.ID),
		Hostname: ps.HostName,
		DNSName:  ps.DNSName,
		OS:       ps.OS,
		Online:   ps.Online,
		ExitNode: ps.ExitNode,
	}
	for _, addr := range ps.TailscaleIPs {
		pi.TailscaleIPs = append(pi.TailscaleIPs, addr.String())
	}
	return pi
}

// NewLocalClient creates a StatusClient backed by the real Tailscale local
// daemon. The client is constructed on first use.
func NewLocalClient(socketPath string) StatusClient {
	return &localClientAdapter{socketPath: socketPath}
}

type localClientAdapter struct {
	socketPath string
	once       sync.Once
	client     StatusClient
}

func (a *localClientAdapter) Status(ctx context.Context) (*ipnstate.Status, error) {
	a.once.Do(func() {
		lc := &local.Client{}
		if a.socketPath != "" {
			lc.Socket = a.socketPath
		}
		a.client = lc
	})
	return a.client.Status(ctx)
}
