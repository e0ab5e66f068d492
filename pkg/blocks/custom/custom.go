// Package custom implements the "custom" block: the output of a shell
// command, either run on an interval or streamed line by line from a
// long-running process.
package custom

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Type is the configuration name of this block.
const Type = "custom"

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Config holds the block-specific keys.
type Config struct {
	Command string `toml:"command"`

	// JSON parses each output as {"text", "short_text", "state", "icon"}.
	JSON bool `toml:"json"`

	// StateExpr is an expr-lang expression evaluated against output
	// (string), value (output as a number, 0 if not numeric) and status
	// (exit code). It must yield a state name.
	StateExpr string `toml:"state_expr"`

	// Persistent keeps the command running and renders every line it
	// prints.
	Persistent bool `toml:"persistent"`

	OnClick  string          `toml:"on_click"`
	Interval config.Duration `toml:"interval"`
	Timeout  config.Duration `toml:"timeout"`
	MaxWidth int             `toml:"max_width"`
	Icon     string          `toml:"icon"`
}

// Output is one result of the command.
type Output struct {
	Text   string
	Status int
}

type jsonOutput struct {
	Text      string `json:"text"`
	ShortText string `json:"short_text"`
	State     string `json:"state"`
	Icon      string `json:"icon"`
}

// renderer turns command output into a segment. It is shared by both block
// kinds.
type renderer struct {
	json     bool
	state    *vm.Program
	maxWidth int
	icon     string
}

// New is the blocks.Factory for "custom". It returns a *Command, or a
// *Persistent when persistent is set.
func New(env blocks.Env) (bar.Block, error) {
	var cfg Config
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("command is required")
	}

	r := renderer{json: cfg.JSON, maxWidth: cfg.MaxWidth, icon: cfg.Icon}
	if cfg.StateExpr != "" {
		program, err := expr.Compile(cfg.StateExpr, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("state_expr: %w", err)
		}
		r.state = program
	}

	if cfg.Persistent {
		return &Persistent{
			cfg:      cfg,
			renderer: r,
			interval: cfg.Interval.Duration,
			log:      env.Log(),
		}, nil
	}
	if env.Waker == nil {
		return nil, fmt.Errorf("custom block needs a waker")
	}
	return &Command{
		cfg:      cfg,
		renderer: r,
		waker:    env.Waker,
		interval: blocks.Interval(cfg.Interval, DefaultInterval),
		timeout:  blocks.Interval(cfg.Timeout, DefaultTimeout),
	}, nil
}

func (r renderer) render(out Output) (bar.Segment, error) {
	text := strings.TrimRight(out.Text, "\r\n")
	p := bar.Part{Icon: r.icon}

	if r.json {
		var j jsonOutput
		if err := json.Unmarshal([]byte(text), &j); err != nil {
			return nil, fmt.Errorf("parse json output: %w", err)
		}
		p.Text, p.ShortText = j.Text, j.ShortText
		p.State = bar.ParseState(j.State)
		if j.Icon != "" {
			p.Icon = j.Icon
		}
	} else {
		// First line is the full text, the second the short text.
		lines := strings.SplitN(text, "\n", 3)
		p.Text = lines[0]
		if len(lines) > 1 {
			p.ShortText = lines[1]
		}
	}

	if r.state != nil {
		s, err := r.evalState(p.Text, out.Status)
		if err != nil {
			return nil, err
		}
		p.State = s
	}
	p.Text = blocks.Truncate(p.Text, r.maxWidth)
	return bar.Segment{p}, nil
}

func (r renderer) evalState(text string, status int) (bar.State, error) {
	value, _ := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%")), 64)
	env := map[string]interface{}{
		"output": text,
		"value":  value,
		"status": status,
	}
	result, err := expr.Run(r.state, env)
	if err != nil {
		return bar.StateIdle, fmt.Errorf("state_expr: %w", err)
	}
	switch v := result.(type) {
	case string:
		return bar.ParseState(v), nil
	case nil:
		return bar.StateIdle, nil
	}
	return bar.StateIdle, fmt.Errorf("state_expr: result %v (%T) is not a state name", result, result)
}

// clickEnv describes a click to on_click commands the way i3blocks does.
func clickEnv(ev protocol.ClickEvent) []string {
	return []string{
		"BLOCK_BUTTON=" + strconv.Itoa(ev.Button),
		"BLOCK_X=" + strconv.Itoa(ev.X),
		"BLOCK_Y=" + strconv.Itoa(ev.Y),
	}
}

// ---------- Command ----------

// Command runs its command off the loop on every update.
type Command struct {
	cfg      Config
	renderer renderer
	waker    bar.Waker
	interval time.Duration
	timeout  time.Duration
}

func (c *Command) Interval() time.Duration { return c.interval }

func (c *Command) Update(ctx context.Context) (bar.Segment, error) {
	err := c.waker.Go(c.timeout, func(ctx context.Context) (any, error) {
		return run(ctx, c.cfg.Command)
	})
	if err != nil {
		return nil, err
	}
	return nil, bar.ErrDeferred
}

func (c *Command) Consume(ctx context.Context, payload any) (bar.Segment, error) {
	out, ok := payload.(Output)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	return c.renderer.render(out)
}

// Click runs on_click, then re-runs the command.
func (c *Command) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if c.cfg.OnClick == "" {
		return nil, false, nil
	}
	if err := blocks.Spawn(c.cfg.OnClick, clickEnv(ev)...); err != nil {
		return nil, false, err
	}
	c.waker.Refresh()
	return nil, false, nil
}

// run executes command with sh -c. A non-zero exit is reported in Status,
// not as an error.
func run(ctx context.Context, command string) (Output, error) {
	var stdout bytes.Buffer
	cmd := shell(ctx, command)
	cmd.Stdout = &stdout
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return Output{Text: stdout.String()}, nil
	case ctx.Err() != nil:
		return Output{}, ctx.Err()
	case errors.As(err, &exitErr):
		return Output{Text: stdout.String(), Status: exitErr.ExitCode()}, nil
	}
	return Output{}, fmt.Errorf("run %q: %w", command, err)
}

// shell returns a sh -c command in its own process group. Cancelling ctx
// kills the whole group so that children holding stdout open exit too.
func shell(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	return cmd
}

// ---------- Persistent ----------

// Persistent streams lines from a long-running command. Each line replaces
// the block's text.
type Persistent struct {
	cfg      Config
	renderer renderer
	interval time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	last bar.Segment
}

func (p *Persistent) Interval() time.Duration { return p.interval }

// Update re-renders the most recent line.
func (p *Persistent) Update(ctx context.Context) (bar.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, nil
}

func (p *Persistent) Consume(ctx context.Context, payload any) (bar.Segment, error) {
	out, ok := payload.(Output)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	seg, err := p.renderer.render(out)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.last = seg
	p.mu.Unlock()
	return seg, nil
}

// Subscribe runs the command until ctx is done, emitting one Output per
// line. It returns when the command exits.
func (p *Persistent) Subscribe(ctx context.Context, emit func(any)) error {
	cmd := shell(ctx, p.cfg.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", p.cfg.Command, err)
	}

	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		emit(Output{Text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		p.log.Warn("reading command output", "error", err)
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%q exited: %w", p.cfg.Command, err)
	}
	if ctx.Err() == nil {
		return fmt.Errorf("%q exited", p.cfg.Command)
	}
	return nil
}

func (p *Persistent) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if p.cfg.OnClick == "" {
		return nil, false, nil
	}
	return nil, false, blocks.Spawn(p.cfg.OnClick, clickEnv(ev)...)
}
