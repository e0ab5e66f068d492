package control

import (
	"encoding/json"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
)

// Controller is the part of *bar.Scheduler the control socket drives.
type Controller interface {
	Match(r bar.Refresh) int
	Refresh(r bar.Refresh)
	Shutdown(mode bar.ShutdownMode, reason string)
	Statuses() []bar.Status
	Phase() bar.Phase
}

// BlockStatus is the STATUS view of one block.
type BlockStatus struct {
	Name        string `json:"name"`
	Instance    string `json:"instance"`
	Healthy     bool   `json:"healthy"`
	Deferred    bool   `json:"deferred,omitempty"`
	LastUpdate  string `json:"last_update,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Updates     int64  `json:"updates"`
	Errors      int64  `json:"errors"`
	LatencyMsec int64  `json:"latency_ms"`
}

// StatusResponse is the STATUS reply.
type StatusResponse struct {
	Phase  string        `json:"phase"`
	Blocks []BlockStatus `json:"blocks"`
}

// SchedulerHandler implements Handler on top of a Controller.
type SchedulerHandler struct {
	ctl Controller
}

// NewSchedulerHandler wraps ctl.
func NewSchedulerHandler(ctl Controller) *SchedulerHandler {
	return &SchedulerHandler{ctl: ctl}
}

func (h *SchedulerHandler) HandleCommand(cmd string, args []string) (string, error) {
	switch cmd {
	case "REFRESH":
		return h.refresh(args)
	case "STATUS":
		return h.status()
	case "QUIT":
		h.ctl.Shutdown(bar.ShutdownGraceful, "control socket")
		return `{"ok":true}`, nil
	case "":
		return "", fmt.Errorf("empty command")
	}
	return "", fmt.Errorf("unknown command %q (available: REFRESH, STATUS, QUIT)", cmd)
}

func (h *SchedulerHandler) refresh(args []string) (string, error) {
	var r bar.Refresh
	switch len(args) {
	case 0:
		r.All = true
	case 1:
		r.Name = args[0]
	case 2:
		r.Name, r.Instance = args[0], args[1]
	default:
		return "", fmt.Errorf("usage: REFRESH [name [instance]]")
	}

	n := h.ctl.Match(r)
	if n == 0 {
		return "", fmt.Errorf("no block matches %v", args)
	}
	h.ctl.Refresh(r)
	return fmt.Sprintf(`{"refreshed":%d}`, n), nil
}

func (h *SchedulerHandler) status() (string, error) {
	resp := StatusResponse{Phase: h.ctl.Phase().String()}
	for _, st := range h.ctl.Statuses() {
		bs := BlockStatus{
			Name:        st.ID.Name,
			Instance:    st.ID.Instance,
			Healthy:     st.Healthy,
			Deferred:    st.Deferred,
			Updates:     st.UpdateCount,
			Errors:      st.ErrorCount,
			LatencyMsec: st.LastLatency.Milliseconds(),
		}
		if !st.LastUpdate.IsZero() {
			bs.LastUpdate = st.LastUpdate.Format(time.RFC3339)
		}
		if st.LastError != nil {
			bs.LastError = st.LastError.Error()
		}
		resp.Blocks = append(resp.Blocks, bs)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}
	return string(data), nil
}
