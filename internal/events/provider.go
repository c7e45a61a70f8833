package events

import (
	"fmt"
	"strings"

	"github.com/conductor-dev/conductor/internal/common/config"
	"github.com/conductor-dev/conductor/internal/common/logger"
	"github.com/conductor-dev/conductor/internal/events/bus"
)

// Provide selects the event bus implementation from configuration: NATS
// when a broker URL is set, the in-process memory bus otherwise (the
// common single-workstation case). The returned cleanup drains or drops
// the bus on daemon shutdown.
func Provide(cfg *config.Config, log *logger.Logger) (bus.EventBus, func(), error) {
	if url := strings.TrimSpace(cfg.NATS.URL); url != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, cfg.Events.Namespace, log)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize nats event bus: %w", err)
		}
		return natsBus, natsBus.Close, nil
	}

	memBus := bus.NewMemoryEventBus(log)
	return memBus, memBus.Close, nil
}
