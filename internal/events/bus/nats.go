package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/common/config"
	"github.com/conductor-dev/conductor/internal/common/logger"
)

// NATSEventBus mirrors Conductor's events onto a local NATS broker. An
// optional namespace prefixes every subject so several daemons (e.g. one
// per user) can share one broker without crosstalk.
type NATSEventBus struct {
	conn      *nats.Conn
	namespace string
	logger    *logger.Logger
}

// NewNATSEventBus connects to the broker at cfg.URL with automatic
// reconnection. Publishes during a reconnect window are buffered by the
// client; nothing Conductor emits is large enough to overflow it.
func NewNATSEventBus(cfg config.NATSConfig, namespace string, log *logger.Logger) (*NATSEventBus, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithFields(zap.String("component", "nats-bus"))

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats async error", zap.String("subject", subject), zap.Error(err))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}
	log.Info("connected to nats", zap.String("url", cfg.URL))

	return &NATSEventBus{conn: conn, namespace: namespace, logger: log}, nil
}

func (b *NATSEventBus) subject(s string) string {
	if b.namespace == "" {
		return s
	}
	return b.namespace + "." + s
}

// Publish JSON-encodes event and publishes it on subject.
func (b *NATSEventBus) Publish(_ context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(b.subject(subject), data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for every subject matching pattern.
func (b *NATSEventBus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(b.subject(pattern), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if err := handler(context.Background(), &event); err != nil {
			b.logger.Warn("event handler failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", pattern, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Close drains the connection so buffered publishes flush before the
// daemon exits.
func (b *NATSEventBus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("nats drain failed", zap.Error(err))
		b.conn.Close()
	}
}

// IsConnected reports the underlying connection state.
func (b *NATSEventBus) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) IsValid() bool {
	return s.sub != nil && s.sub.IsValid()
}
