package bus

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/common/logger"
)

// MemoryEventBus is the in-process EventBus used when no broker is
// configured. Delivery is asynchronous (one goroutine per delivery) so a
// slow handler never stalls the Supervisor's pump, and there is no
// buffering beyond the scheduler: a handler subscribed after a publish
// never sees that event.
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[int]*memorySubscription
	nextID int
	closed bool
	logger *logger.Logger
}

type memorySubscription struct {
	id      int
	pattern []string
	handler Handler
	bus     *MemoryEventBus
	valid   bool
}

// NewMemoryEventBus returns an empty in-process bus.
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	if log == nil {
		log = logger.Default()
	}
	return &MemoryEventBus{
		subs:   make(map[int]*memorySubscription),
		logger: log.WithFields(zap.String("component", "memory-bus")),
	}
}

// Publish delivers event to every subscription whose pattern matches
// subject. Handler errors are logged and dropped.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	tokens := strings.Split(subject, ".")

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		if !subjectMatches(sub.pattern, tokens) {
			continue
		}
		handler := sub.handler
		go func() {
			if err := handler(ctx, event); err != nil {
				b.logger.Warn("event handler failed",
					zap.String("subject", subject),
					zap.String("event_type", event.Type),
					zap.Error(err))
			}
		}()
	}
	return nil
}

// Subscribe registers handler for every subject matching pattern.
func (b *MemoryEventBus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscription{
		id:      b.nextID,
		pattern: strings.Split(pattern, "."),
		handler: handler,
		bus:     b,
		valid:   !b.closed,
	}
	b.nextID++
	if !b.closed {
		b.subs[sub.id] = sub
	}
	return sub, nil
}

// Close drops every subscription; further publishes are no-ops.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		sub.valid = false
		delete(b.subs, id)
	}
}

// IsConnected reports whether the bus still accepts publishes.
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.valid = false
	delete(s.bus.subs, s.id)
	return nil
}

func (s *memorySubscription) IsValid() bool {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.valid
}

// subjectMatches implements NATS-style pattern matching over
// dot-separated tokens: "*" matches exactly one token, a trailing ">"
// matches one or more remaining tokens.
func subjectMatches(pattern, subject []string) bool {
	for i, p := range pattern {
		if p == ">" {
			return i == len(pattern)-1 && len(subject) > i
		}
		if i >= len(subject) {
			return false
		}
		if p != "*" && p != subject[i] {
			return false
		}
	}
	return len(pattern) == len(subject)
}
