package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-dev/conductor/internal/normalizer"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := newBroadcaster(0)
	_, ch1 := b.subscribe()
	_, ch2 := b.subscribe()

	b.publish(Frame{Kind: KindEvent, Event: normalizer.Event{Type: normalizer.EventMessage, Text: "hi"}})

	select {
	case f := <-ch1:
		assert.Equal(t, "hi", f.Event.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 1")
	}
	select {
	case f := <-ch2:
		assert.Equal(t, "hi", f.Event.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 2")
	}
}

func TestBroadcasterDropsOldestOnFullChannel(t *testing.T) {
	b := newBroadcaster(0)
	_, ch := b.subscribe()

	for i := 0; i < defaultBroadcastCapacity+10; i++ {
		b.publish(Frame{Kind: KindEvent, Event: normalizer.Event{Type: normalizer.EventMessage, Text: fmt.Sprint(i)}})
	}

	assert.Len(t, ch, defaultBroadcastCapacity)
	// The ten oldest frames (0..9) were dropped to make room.
	assert.Equal(t, "10", (<-ch).Event.Text)
}

func TestBroadcasterCloseClosesSubscribers(t *testing.T) {
	b := newBroadcaster(0)
	_, ch := b.subscribe()
	b.close()

	_, open := <-ch
	assert.False(t, open)
}

func TestPumpEmitsStartedAndCompletedSentinels(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", `echo '{"type":"thread.started","thread_id":"t1"}'`)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	h := &Handle{SessionID: "s1", Engine: "codex", cmd: cmd, bus: newBroadcaster(0)}
	_, ch := h.bus.subscribe()

	s := New(nil, Options{})
	done := make(chan struct{})
	go func() {
		s.pump(h, stdout, normalizer.New(normalizer.EngineCodex))
		close(done)
	}()

	var frames []Frame
	for f := range ch {
		frames = append(frames, f)
	}
	<-done

	require.Len(t, frames, 3)
	assert.Equal(t, KindStarted, frames[0].Kind)
	assert.Equal(t, normalizer.EventStarted, frames[0].Event.Type)
	assert.Equal(t, normalizer.Engine("codex"), frames[0].Event.Engine)

	assert.Equal(t, KindEvent, frames[1].Kind)
	assert.Equal(t, normalizer.EventStarted, frames[1].Event.Type)
	assert.Equal(t, "t1", frames[1].Event.Resume)

	assert.Equal(t, KindCompleted, frames[2].Kind)
	assert.Equal(t, normalizer.EventCompleted, frames[2].Event.Type)
}

func TestStopAgentIsIdempotent(t *testing.T) {
	s := New(nil, Options{})
	ctx := context.Background()
	_, err := s.RunAgent(ctx, "sess", "codex", "true", t.TempDir(), "")
	if err != nil {
		t.Skipf("codex binary not available in test environment: %v", err)
	}

	require.NoError(t, s.StopAgent("sess"))
	err = s.StopAgent("sess")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAttachUnknownSessionFails(t *testing.T) {
	s := New(nil, Options{})
	_, err := s.AttachAgent("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
