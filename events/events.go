// Package events publishes authorization lifecycle notifications. Hosts can
// subscribe to audit logins, track failures or persist refreshed tokens.
package events

import (
	"context"
	"time"
)

// Topics published by oauthkit.
const (
	AuthorizationStarted   = "authorization.started"
	AuthorizationCompleted = "authorization.completed"
	AuthorizationFailed    = "authorization.failed"
	TokenRefreshed         = "token.refreshed"
	TokenRevoked           = "token.revoked"
)

// Topics lists every topic oauthkit publishes.
var Topics = []string{
	AuthorizationStarted,
	AuthorizationCompleted,
	AuthorizationFailed,
	TokenRefreshed,
	TokenRevoked,
}

// Event describes something that happened to a flow or token. State values
// and client secrets are never included. Data is topic specific: the
// *oauthkit.OAuth2AccessToken for TokenRefreshed, so hosts can persist it,
// and the provider's error info for AuthorizationFailed. Handlers must treat
// a refreshed token as a secret.
type Event struct {
	ID       string
	Topic    string
	Time     time.Time
	Group    string
	Provider string

	// AttemptID identifies the authorization attempt, it is not the state
	// value itself.
	AttemptID string

	Err  error
	Data any
}

// Handler receives published events.
type Handler func(context.Context, *Event) error

// Bus delivers events to subscribers.
type Bus interface {
	// Subscribe registers handler for topic. Handlers may run concurrently.
	Subscribe(topic string, handler Handler)

	// Publish sends ev to every subscriber of topic.
	Publish(topic string, ev *Event)

	// Wait blocks until in-flight deliveries finish.
	Wait(ctx context.Context) error
}

type busKey struct{}

// WithBus attaches a bus to the context.
func WithBus(ctx context.Context, bus Bus) context.Context {
	return context.WithValue(ctx, busKey{}, bus)
}

// FromContext returns the bus attached to ctx, or nil.
func FromContext(ctx context.Context) Bus {
	if ctx == nil {
		return nil
	}
	if b, ok := ctx.Value(busKey{}).(Bus); ok {
		return b
	}
	return nil
}

// Publish sends ev on the context's bus, if any.
func Publish(ctx context.Context, topic string, ev *Event) {
	if b := FromContext(ctx); b != nil {
		b.Publish(topic, ev)
	}
}
