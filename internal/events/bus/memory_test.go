package bus

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers delivered events behind a mutex so tests can assert
// on them after the asynchronous dispatch settles.
type collector struct {
	mu     sync.Mutex
	events []*Event
	seen   chan struct{}
}

func newCollector() *collector {
	return &collector{seen: make(chan struct{}, 64)}
}

func (c *collector) handle(_ context.Context, ev *Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.seen <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []*Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.events...)
}

func TestMemoryBusDeliversToExactSubject(t *testing.T) {
	b := NewMemoryEventBus(nil)
	defer b.Close()

	c := newCollector()
	_, err := b.Subscribe("agent.session.event.s1", c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "agent.session.event.s1", NewEvent("agent.session.event", "test", nil)))
	events := c.wait(t, 1)
	assert.Equal(t, "agent.session.event", events[0].Type)
}

func TestMemoryBusWildcardMatching(t *testing.T) {
	b := NewMemoryEventBus(nil)
	defer b.Close()

	cases := []struct {
		pattern string
		subject string
		match   bool
	}{
		{"agent.session.event.*", "agent.session.event.s1", true},
		{"agent.session.event.*", "agent.session.event.s1.extra", false},
		{"agent.>", "agent.session.event.s1", true},
		{"agent.>", "agent", false},
		{"workspace.created", "workspace.archived", false},
	}
	for _, tc := range cases {
		got := subjectMatches(strings.Split(tc.pattern, "."), strings.Split(tc.subject, "."))
		assert.Equal(t, tc.match, got, "pattern=%q subject=%q", tc.pattern, tc.subject)
	}
}

func TestMemoryBusFansOutToAllMatchingSubscribers(t *testing.T) {
	b := NewMemoryEventBus(nil)
	defer b.Close()

	c1, c2 := newCollector(), newCollector()
	_, err := b.Subscribe("agent.session.event.*", c1.handle)
	require.NoError(t, err)
	_, err = b.Subscribe("agent.>", c2.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "agent.session.event.s7", NewEvent("agent.session.event", "test", map[string]any{"session_id": "s7"})))

	assert.Equal(t, "s7", c1.wait(t, 1)[0].Data["session_id"])
	assert.Equal(t, "s7", c2.wait(t, 1)[0].Data["session_id"])
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryEventBus(nil)
	defer b.Close()

	c := newCollector()
	sub, err := b.Subscribe("repo.added", c.handle)
	require.NoError(t, err)
	assert.True(t, sub.IsValid())

	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.IsValid())

	require.NoError(t, b.Publish(context.Background(), "repo.added", NewEvent("repo.added", "test", nil)))
	time.Sleep(50 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.events)
}

func TestMemoryBusCloseInvalidatesEverything(t *testing.T) {
	b := NewMemoryEventBus(nil)
	sub, err := b.Subscribe("workspace.created", newCollector().handle)
	require.NoError(t, err)

	b.Close()
	assert.False(t, b.IsConnected())
	assert.False(t, sub.IsValid())
	assert.NoError(t, b.Publish(context.Background(), "workspace.created", NewEvent("workspace.created", "test", nil)))
}

func TestNewEventStampsIdentityAndTime(t *testing.T) {
	before := time.Now().UTC()
	ev := NewEvent("workspace.archived", "rpc", map[string]any{"workspace_id": "w1"})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "workspace.archived", ev.Type)
	assert.Equal(t, "rpc", ev.Source)
	assert.False(t, ev.Timestamp.Before(before.Add(-time.Second)))
	assert.Equal(t, "w1", ev.Data["workspace_id"])
}
