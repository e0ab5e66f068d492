// status-pulse is an i3bar/swaybar status line generator.
//
// It runs a set of configured blocks (clock, system metrics, network,
// temperature, tailscale, kubernetes, custom commands), writes the bar to
// stdout using the i3bar JSON protocol and routes click events read from
// stdin back to the block that owns them.
//
// Usage:
//
//	status-pulse [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: ~/.config/status-pulse/config.toml)
//	-output string    auto, i3bar or preview (default: auto)
//	-preset string    Use a builtin block preset instead of the configured blocks
//	-ctl string       Send a command (REFRESH, STATUS, QUIT) to a running instance
//	-verbose          Enable verbose logging
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/clock"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/custom"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/kube"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/sysmetrics"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/tailscale"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks/temperature"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/control"
	"gitlab.com/tinyland/lab/status-pulse/pkg/preview"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/status-pulse/pkg/telemetry"
	"gitlab.com/tinyland/lab/status-pulse/pkg/theme"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

const (
	outputAuto    = "auto"
	outputI3bar   = "i3bar"
	outputPreview = "preview"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		outputMode  = flag.String("output", outputAuto, "Output mode: auto, i3bar or preview")
		presetName  = flag.String("preset", "", "Use a builtin block preset ("+strings.Join(config.PresetNames(), ", ")+")")
		ctlCommand  = flag.String("ctl", "", "Send a control command to a running instance and print the reply")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("status-pulse %s (%s) built %s\n", version, commit, date)
		return 0
	}

	cfg, err := loadConfig(*configPath, *presetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if *ctlCommand != "" {
		return runControlClient(cfg, *ctlCommand)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	// Logging goes to stderr and, optionally, a log file. stdout carries
	// the protocol.
	var logOut io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		if err := ensureLogDir(cfg.General.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
			return 1
		}
		logFile, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			return 1
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stderr, logFile)
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel, *verbose),
	}))

	shared, err := resolveShared(cfg.Theme)
	if err != nil {
		logger.Error("theme setup failed", "error", err)
		return 1
	}

	mode, err := resolveOutput(*outputMode, isatty.IsTerminal(os.Stdout.Fd()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	opts := bar.Options{
		Logger:        logger,
		Shared:        shared,
		DrainTimeout:  cfg.General.DrainTimeoutOrDefault(),
		UpdateCeiling: cfg.General.UpdateCeilingOrDefault(),
		OnPhase: func(p bar.Phase) {
			logger.Debug("scheduler phase", "phase", p.String())
		},
	}
	switch mode {
	case outputPreview:
		header := protocol.DefaultHeader()
		header.ClickEvents = false
		opts.Header = &header
		opts.Encoder = preview.New(os.Stdout)
	default:
		opts.Encoder = protocol.NewWriter(os.Stdout)
		opts.Input = os.Stdin
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.General.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		m, err := telemetry.NewPrometheusMetrics(reg)
		if err != nil {
			logger.Error("metrics setup failed", "error", err)
			return 1
		}
		opts.Metrics = m
		go func() {
			if err := telemetry.Serve(ctx, cfg.General.MetricsListen, reg, logger); err != nil {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	sched := bar.New(opts)
	registry, err := newRegistry()
	if err != nil {
		logger.Error("block registry setup failed", "error", err)
		return 1
	}
	if err := registry.Build(sched, cfg.Blocks, shared, logger); err != nil {
		logger.Error("invalid block configuration", "error", err)
		return 1
	}
	sched.WatchSignals(ctx)

	if path := expandPath(cfg.General.ControlSocket); path != "" {
		srv := control.NewServer(path, control.NewSchedulerHandler(sched), logger)
		if err := srv.Start(); err != nil {
			logger.Warn("control socket disabled", "path", path, "error", err)
		} else {
			defer srv.Stop()
		}
	}

	logger.Info("starting status-pulse",
		"version", version,
		"output", mode,
		"blocks", len(cfg.Blocks),
		"config", cfg.Source,
	)
	if err := sched.Run(ctx); err != nil {
		var cfgErr *bar.ConfigurationError
		switch {
		case errors.As(err, &cfgErr):
			logger.Error("configuration error", "error", err)
		case errors.Is(err, bar.ErrProtocolEncode):
			logger.Error("protocol encode failed", "error", err)
		default:
			logger.Error("scheduler stopped", "error", err)
		}
		return 1
	}
	logger.Info("status-pulse stopped")
	return 0
}

// loadConfig reads path, or searches the standard locations when path is
// empty. A non-empty preset replaces the configured blocks.
func loadConfig(path, preset string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if preset != "" {
		if !slices.Contains(config.PresetNames(), preset) {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", preset, strings.Join(config.PresetNames(), ", "))
		}
		cfg.Blocks = config.BlockPreset(preset)
	}
	return cfg, nil
}

func runControlClient(cfg *config.Config, command string) int {
	path := expandPath(cfg.General.ControlSocket)
	if path == "" {
		fmt.Fprintln(os.Stderr, "control socket is not configured (general.control_socket)")
		return 1
	}
	resp, err := control.NewClient(path).Send(command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Println(resp)
	return 0
}

// newRegistry registers every builtin block type.
func newRegistry() (*blocks.Registry, error) {
	r := blocks.NewRegistry()
	factories := []struct {
		typ string
		f   blocks.Factory
	}{
		{clock.Type, clock.New},
		{sysmetrics.CPUType, sysmetrics.NewCPU},
		{sysmetrics.MemoryType, sysmetrics.NewMemory},
		{sysmetrics.LoadType, sysmetrics.NewLoad},
		{sysmetrics.DiskType, sysmetrics.NewDisk},
		{sysmetrics.NetType, sysmetrics.NewNet},
		{temperature.Type, temperature.New},
		{tailscale.Type, tailscale.New},
		{kube.Type, kube.New},
		{custom.Type, custom.New},
	}
	for _, f := range factories {
		if err := r.Register(f.typ, f.f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// resolveShared builds the presentation context: a builtin theme or a TOML
// theme file, the configured overrides and the icon set.
func resolveShared(tc config.ThemeConfig) (bar.Shared, error) {
	t, ok := theme.Lookup(tc.Name)
	if !ok {
		var err error
		t, err = theme.LoadFile(expandPath(tc.Name))
		if err != nil {
			return bar.Shared{}, fmt.Errorf("theme %q is neither builtin (%s) nor a readable file: %w",
				tc.Name, strings.Join(theme.Names(), ", "), err)
		}
	}
	t, err := theme.WithOverrides(t, tc.Overrides)
	if err != nil {
		return bar.Shared{}, err
	}
	icons, err := theme.IconSet(tc.Icons)
	if err != nil {
		return bar.Shared{}, err
	}
	return bar.Shared{Theme: t, Icons: icons}, nil
}

// resolveOutput maps the -output flag to an encoder. In auto mode a
// terminal on stdout selects the preview.
func resolveOutput(mode string, stdoutIsTerminal bool) (string, error) {
	switch mode {
	case outputAuto, "":
		if stdoutIsTerminal {
			return outputPreview, nil
		}
		return outputI3bar, nil
	case outputI3bar, outputPreview:
		return mode, nil
	}
	return "", fmt.Errorf("unknown output mode %q (supported: auto, i3bar, preview)", mode)
}

func logLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// expandPath expands environment variables and a leading "~/".
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

func ensureLogDir(logFile string) error {
	dir := filepath.Dir(logFile)
	return os.MkdirAll(dir, 0755)
}
