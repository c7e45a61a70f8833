// Package sidecar persists the per-workspace session file and chat log that
// live alongside a workspace's worktree, under its .conductor-app/
// directory. Sidecar state is plain files, not rows in internal/store: a
// crash between worktree creation and first sidecar write leaves a
// workspace with no sidecar, and callers must treat that as "no session
// yet" rather than an error.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	dirName     = ".conductor-app"
	sessionFile = "session.json"
	chatFile    = "chat.md"
)

// ErrNoSession means session_set_resume_id was called against a workspace
// that has never had a session created.
var ErrNoSession = errors.New("no session exists for workspace")

// Session is the sidecar's session.json contents.
type Session struct {
	AgentID   string    `json:"agent_id"`
	ResumeID  *string   `json:"resume_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func dir(workspacePath string) string {
	return filepath.Join(workspacePath, dirName)
}

func sessionPath(workspacePath string) string {
	return filepath.Join(dir(workspacePath), sessionFile)
}

func chatPath(workspacePath string) string {
	return filepath.Join(dir(workspacePath), chatFile)
}

// EnsureDir creates the .conductor-app/ directory if it does not already
// exist. WorkspaceCreate calls this once so every ready workspace has a
// sidecar home even before any session is written to it.
func EnsureDir(workspacePath string) error {
	return os.MkdirAll(dir(workspacePath), 0o755)
}

// Read returns the workspace's session, or nil if no sidecar session file
// exists yet. Malformed JSON is an error, not an absent session.
func Read(workspacePath string) (*Session, error) {
	data, err := os.ReadFile(sessionPath(workspacePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session sidecar: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session sidecar: %w", err)
	}
	return &s, nil
}

// Write persists s to the workspace's session.json, creating the sidecar
// directory lazily if necessary.
func Write(workspacePath string, s *Session) error {
	if err := EnsureDir(workspacePath); err != nil {
		return fmt.Errorf("create sidecar directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session sidecar: %w", err)
	}
	if err := os.WriteFile(sessionPath(workspacePath), data, 0o644); err != nil {
		return fmt.Errorf("write session sidecar: %w", err)
	}
	return nil
}

// Create stamps a brand new session for agentID, with started_at and
// updated_at both set to now. Any existing session is overwritten.
func Create(workspacePath, agentID string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{AgentID: agentID, StartedAt: now, UpdatedAt: now}
	if err := Write(workspacePath, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetResumeID attaches a resume token to an existing session, refusing if
// no session has been created yet.
func SetResumeID(workspacePath, resumeID string) (*Session, error) {
	s, err := Read(workspacePath)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	s.ResumeID = &resumeID
	s.UpdatedAt = time.Now().UTC()
	if err := Write(workspacePath, s); err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertResumeID attaches a resume token to the workspace's session,
// creating one for agentID first if none exists yet.
func UpsertResumeID(workspacePath, agentID, resumeID string) (*Session, error) {
	s, err := Read(workspacePath)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s, err = Create(workspacePath, agentID)
		if err != nil {
			return nil, err
		}
	}
	s.ResumeID = &resumeID
	s.UpdatedAt = time.Now().UTC()
	if err := Write(workspacePath, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadChat returns the full contents of chat.md, or "" if it has not been
// written yet.
func ReadChat(workspacePath string) (string, error) {
	data, err := os.ReadFile(chatPath(workspacePath))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read chat sidecar: %w", err)
	}
	return string(data), nil
}

// AppendChat appends an RFC-3339-stamped markdown section to chat.md,
// creating the sidecar directory lazily if necessary.
//
//	## <role> (<timestamp>)
//
//	<content>
//
//	---
func AppendChat(workspacePath, role, content string) error {
	if err := EnsureDir(workspacePath); err != nil {
		return fmt.Errorf("create sidecar directory: %w", err)
	}
	section := fmt.Sprintf("## %s (%s)\n\n%s\n\n---\n\n", role, time.Now().UTC().Format(time.RFC3339), content)

	f, err := os.OpenFile(chatPath(workspacePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open chat sidecar: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(section); err != nil {
		return fmt.Errorf("append chat sidecar: %w", err)
	}
	return nil
}

// ClearChat removes chat.md entirely. Clearing an already-absent chat log
// is a no-op.
func ClearChat(workspacePath string) error {
	err := os.Remove(chatPath(workspacePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
