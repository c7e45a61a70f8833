package supervisor

import (
	"os/exec"
	"time"
)

// Handle is the Supervisor's registration entry for one running agent
// child: its process handle, the coordinates it was started with, and the
// broadcast sender every subscriber attaches to.
type Handle struct {
	SessionID string
	Engine    string
	Cwd       string
	StartedAt time.Time

	cmd *exec.Cmd
	bus *broadcaster
}

// Info is the read-only snapshot ListActiveAgents returns.
type Info struct {
	SessionID string    `json:"session_id"`
	Engine    string    `json:"engine"`
	Cwd       string    `json:"cwd"`
	StartedAt time.Time `json:"started_at"`
	PID       int       `json:"pid"`
}

func (h *Handle) info() Info {
	pid := 0
	if h.cmd != nil && h.cmd.Process != nil {
		pid = h.cmd.Process.Pid
	}
	return Info{SessionID: h.SessionID, Engine: h.Engine, Cwd: h.Cwd, StartedAt: h.StartedAt, PID: pid}
}
