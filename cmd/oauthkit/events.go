package main

import (
	"context"

	"github.com/dpup/oauthkit/events"
	"github.com/dpup/oauthkit/events/membus"
	"github.com/dpup/oauthkit/logging"
)

// newEventBus returns a bus that logs every lifecycle event. Event data is
// left out since a refreshed token travels there.
func newEventBus(ctx context.Context) *membus.Bus {
	bus := membus.New(ctx, membus.WithWorkerPool(1))
	for _, topic := range events.Topics {
		bus.Subscribe(topic, logEvent)
	}
	return bus
}

func logEvent(ctx context.Context, ev *events.Event) error {
	kv := []interface{}{"topic", ev.Topic, "provider", ev.Provider}
	if ev.Group != "" {
		kv = append(kv, "group", ev.Group)
	}
	if ev.AttemptID != "" {
		kv = append(kv, "attempt", ev.AttemptID)
	}
	if ev.Err != nil {
		kv = append(kv, "error", ev.Err.Error())
	}
	logging.Infow(ctx, "lifecycle event", kv...)
	return nil
}
