// Package supervisor owns running agent child processes: it spawns the
// vendor CLI for a session, pumps its stdout through an
// internal/normalizer.Parser, and fans the resulting uniform events out to
// every attached subscriber. It never blocks on a slow subscriber and it
// is the sole place session ids are considered live.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conductor-dev/conductor/internal/common/logger"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/events/bus"
	"github.com/conductor-dev/conductor/internal/normalizer"
)

// ErrSessionExists means RunAgent was called with a session id that
// already has a running handle.
var ErrSessionExists = errors.New("session already running")

// ErrSessionNotFound means AttachAgent/StopAgent named a session with no
// registered handle. Both a stale id and a second StopAgent on the same
// session hit this path, making Stop idempotent in effect.
var ErrSessionNotFound = errors.New("session not found")

// shutdownGrace is how long Shutdown waits after signalling every child,
// giving the pump tasks time to observe EOF and flush their terminal
// event before the daemon process exits.
const shutdownGrace = 100 * time.Millisecond

// Supervisor is the process registry: a single mutex guards the handle
// map, with critical sections limited to map mutation.
type Supervisor struct {
	mu       sync.Mutex
	handles  map[string]*Handle
	log      *logger.Logger
	engines  map[string]EngineSpec
	eventBus bus.EventBus
	opts     Options
}

// Options tunes per-session buffering and child teardown.
type Options struct {
	// BroadcastBuffer is each subscriber's channel capacity; zero selects
	// the default.
	BroadcastBuffer int
	// StopGrace is how long a stopped child gets to exit after SIGTERM
	// before it is killed outright; zero disables the escalation.
	StopGrace time.Duration
}

// SetEventBus attaches a secondary sink every session event is also
// mirrored onto, alongside the in-process broadcaster, so an RPC front-end
// running outside this process (e.g. over CONDUCTOR_NATS_URL) can observe
// agent activity without attaching directly to the Supervisor. The
// in-process broadcaster remains the only subscription path AttachAgent
// and RunAgent return; this is an additional, independent sink.
func (s *Supervisor) SetEventBus(b bus.EventBus) {
	s.mu.Lock()
	s.eventBus = b
	s.mu.Unlock()
}

func (s *Supervisor) publishToBus(sessionID, kind string, ev normalizer.Event) {
	s.mu.Lock()
	b := s.eventBus
	s.mu.Unlock()
	if b == nil {
		return
	}
	data := map[string]interface{}{
		"session_id": sessionID,
		"type":       string(ev.Type),
		"engine":     string(ev.Engine),
	}
	if err := b.Publish(context.Background(), events.BuildSessionSubject(sessionID), bus.NewEvent(kind, "supervisor", data)); err != nil {
		s.log.Warn("failed to mirror session event to bus", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// New constructs an empty Supervisor with the built-in engine table. Call
// LoadEngines to override it from an engines.yaml file.
func New(log *logger.Logger, opts Options) *Supervisor {
	if log == nil {
		log = logger.Default()
	}
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = defaultBroadcastCapacity
	}
	return &Supervisor{
		handles: make(map[string]*Handle),
		log:     log.WithFields(zap.String("component", "supervisor")),
		engines: defaultEngines(),
		opts:    opts,
	}
}

// LoadEngines replaces the engine command table with the one declared at
// path, falling back to (and preserving) the built-in defaults for any
// engine the file does not mention. An empty or missing path is a no-op.
func (s *Supervisor) LoadEngines(path string) error {
	table, err := loadEngineTable(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.engines = table
	s.mu.Unlock()
	return nil
}

// RunAgent spawns engine's CLI in cwd with prompt (optionally resuming a
// prior session via resumeToken) under sessionID, and returns a
// subscription to its event stream. sessionID must not already be
// registered.
func (s *Supervisor) RunAgent(ctx context.Context, sessionID, engine, prompt, cwd, resumeToken string) (<-chan Frame, error) {
	s.mu.Lock()
	if _, exists := s.handles[sessionID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	s.mu.Unlock()

	s.mu.Lock()
	table := s.engines
	s.mu.Unlock()
	binary, args, normEngine, err := buildCommand(table, engine, prompt, resumeToken)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = cwd
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent process: %w", err)
	}

	h := &Handle{
		SessionID: sessionID,
		Engine:    engine,
		Cwd:       cwd,
		StartedAt: time.Now().UTC(),
		cmd:       cmd,
		bus:       newBroadcaster(s.opts.BroadcastBuffer),
	}

	s.mu.Lock()
	s.handles[sessionID] = h
	s.mu.Unlock()

	_, ch := h.bus.subscribe()

	go s.drainStderr(h, stderr)
	go s.pump(h, stdout, normalizer.New(normEngine))

	return ch, nil
}

// drainStderr keeps a child's stderr pipe empty so it never blocks on a
// full OS pipe buffer. Conductor does not surface stderr as events; the
// CLI wrapper retains that option for its own opaque-event forwarding.
func (s *Supervisor) drainStderr(h *Handle, stderr io.ReadCloser) {
	_, _ = io.Copy(io.Discard, stderr)
}

// pump reads one child's stdout line by line, decoding and normalizing
// each line and broadcasting every emitted event, until EOF. The two
// transport markers it synthesizes -- a content-free started frame before
// the first read and a content-free completed frame after EOF -- are
// tagged KindStarted/KindCompleted explicitly, so they are never confused
// with a real Normalizer agent.started/agent.completed event, which
// always rides in a KindEvent frame alongside its resume token or answer.
func (s *Supervisor) pump(h *Handle, stdout io.ReadCloser, parser *normalizer.Parser) {
	started := normalizer.Event{Type: normalizer.EventStarted, Engine: normalizer.Engine(h.Engine)}
	h.bus.publish(Frame{Kind: KindStarted, Event: started})
	s.publishToBus(h.SessionID, events.AgentSessionStarted, started)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		evs, matched := parser.Parse(line)
		if !matched {
			continue
		}
		for _, ev := range evs {
			h.bus.publish(Frame{Kind: KindEvent, Event: ev})
			s.publishToBus(h.SessionID, events.AgentSessionEvent, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("agent stdout scan error", zap.String("session_id", h.SessionID), zap.Error(err))
	}

	_ = h.cmd.Wait()

	completed := normalizer.Event{Type: normalizer.EventCompleted, Engine: normalizer.Engine(h.Engine)}
	h.bus.publish(Frame{Kind: KindCompleted, Event: completed})
	s.publishToBus(h.SessionID, events.AgentSessionCompleted, completed)
	h.bus.close()

	s.mu.Lock()
	delete(s.handles, h.SessionID)
	s.mu.Unlock()
}

// AttachAgent subscribes a new client to an already-running session.
// Frames produced before the call returns are missed; there is no replay.
func (s *Supervisor) AttachAgent(sessionID string) (<-chan Frame, error) {
	s.mu.Lock()
	h, ok := s.handles[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	_, ch := h.bus.subscribe()
	return ch, nil
}

// StopAgent terminates a running session's child process. The pump task
// observes the resulting EOF and runs its normal teardown; StopAgent
// itself only removes the handle and signals the child, it does not wait
// for the pump to finish.
func (s *Supervisor) StopAgent(sessionID string) error {
	s.mu.Lock()
	h, ok := s.handles[sessionID]
	if ok {
		delete(s.handles, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.publishToBus(sessionID, events.AgentSessionStopped, normalizer.Event{Type: normalizer.EventCompleted, Engine: normalizer.Engine(h.Engine)})
	return terminate(h.cmd, s.opts.StopGrace)
}

// ListActiveAgents snapshots every currently registered session.
func (s *Supervisor) ListActiveAgents() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h.info())
	}
	return out
}

// Shutdown terminates every running child and waits a brief grace period
// so in-flight streaming replies can be flushed before the daemon exits.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for id, h := range s.handles {
		handles = append(handles, h)
		delete(s.handles, id)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if err := terminate(h.cmd, s.opts.StopGrace); err != nil {
				s.log.Warn("failed to terminate child during shutdown", zap.String("session_id", h.SessionID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	select {
	case <-ctx.Done():
	case <-time.After(shutdownGrace):
	}
}
