package sidecar

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAbsentSessionIsNil(t *testing.T) {
	s, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestReadMalformedSessionIsAnError(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, EnsureDir(ws))
	require.NoError(t, os.WriteFile(sessionPath(ws), []byte("{not json"), 0o644))

	_, err := Read(ws)
	assert.Error(t, err)
}

func TestCreateStampsTimestamps(t *testing.T) {
	ws := t.TempDir()
	before := time.Now().UTC().Add(-time.Second)

	s, err := Create(ws, "claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", s.AgentID)
	assert.Nil(t, s.ResumeID)
	assert.True(t, s.StartedAt.After(before))
	assert.Equal(t, s.StartedAt, s.UpdatedAt)

	back, err := Read(ws)
	require.NoError(t, err)
	assert.Equal(t, s.AgentID, back.AgentID)
}

func TestSetResumeIDRequiresSession(t *testing.T) {
	ws := t.TempDir()

	_, err := SetResumeID(ws, "tok-1")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = Create(ws, "codex")
	require.NoError(t, err)

	s, err := SetResumeID(ws, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, s.ResumeID)
	assert.Equal(t, "tok-1", *s.ResumeID)
}

func TestUpsertResumeIDCreatesLazily(t *testing.T) {
	ws := t.TempDir()

	s, err := UpsertResumeID(ws, "claude", "tok-9")
	require.NoError(t, err)
	assert.Equal(t, "claude", s.AgentID)
	require.NotNil(t, s.ResumeID)
	assert.Equal(t, "tok-9", *s.ResumeID)

	// A second upsert updates in place without resetting started_at.
	again, err := UpsertResumeID(ws, "ignored", "tok-10")
	require.NoError(t, err)
	assert.Equal(t, "claude", again.AgentID)
	assert.Equal(t, s.StartedAt, again.StartedAt)
	assert.Equal(t, "tok-10", *again.ResumeID)
}

func TestChatAppendFormat(t *testing.T) {
	ws := t.TempDir()

	require.NoError(t, AppendChat(ws, "user", "hello there"))
	require.NoError(t, AppendChat(ws, "assistant", "hi back"))

	chat, err := ReadChat(ws)
	require.NoError(t, err)

	sections := regexp.MustCompile(`(?m)^## (user|assistant) \((.+)\)\n\n(.+)\n\n---\n`).FindAllStringSubmatch(chat, -1)
	require.Len(t, sections, 2)
	assert.Equal(t, "user", sections[0][1])
	assert.Equal(t, "hello there", sections[0][3])
	assert.Equal(t, "assistant", sections[1][1])

	_, err = time.Parse(time.RFC3339, sections[0][2])
	assert.NoError(t, err, "chat timestamps are RFC 3339")
}

func TestChatClearIsIdempotent(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, ClearChat(ws))

	require.NoError(t, AppendChat(ws, "user", "x"))
	require.NoError(t, ClearChat(ws))

	chat, err := ReadChat(ws)
	require.NoError(t, err)
	assert.Empty(t, chat)
}

func TestArchiveSidecarCopiesWithoutMoving(t *testing.T) {
	ws := t.TempDir()
	_, err := Create(ws, "claude")
	require.NoError(t, err)
	require.NoError(t, AppendChat(ws, "user", "keep me"))

	home := t.TempDir()

	dest, err := ArchiveSidecar(home, "ws-123", ws)
	require.NoError(t, err)
	require.NotEmpty(t, dest)
	assert.Contains(t, dest, filepath.Join(home, ".conductor-app", "archive", "ws-123"))

	assert.FileExists(t, filepath.Join(dest, "session.json"))
	assert.FileExists(t, filepath.Join(dest, "chat.md"))
	// The originals stay in place; archive is a copy.
	assert.FileExists(t, sessionPath(ws))
	assert.FileExists(t, chatPath(ws))
}

func TestArchiveSidecarWithNoSidecarIsNoOp(t *testing.T) {
	dest, err := ArchiveSidecar(t.TempDir(), "ws-404", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, dest)
}
