package realtime

import (
	"context"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

// Bus fans messages out across instances. Implementations live in realtime/bus.
type Bus interface {
	Publish(ctx context.Context, msg SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m SSEMessage)) error
	Close() error
}

// Publisher is what services use to push events; it hides whether a bus is configured.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage)
}

type publisher struct {
	log *logger.Logger
	hub *SSEHub
	bus Bus
}

// NewPublisher broadcasts on the local hub, or through bus when one is given. With a bus
// every instance (this one included) receives the message via its forwarder.
func NewPublisher(log *logger.Logger, hub *SSEHub, bus Bus) Publisher {
	return &publisher{log: log.With("component", "SSEPublisher"), hub: hub, bus: bus}
}

func (p *publisher) Publish(ctx context.Context, msg SSEMessage) {
	if p == nil || msg.Channel == "" {
		return
	}
	if p.bus != nil {
		err := p.bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		p.log.Warn("SSE bus publish failed; delivering locally", "error", err, "channel", msg.Channel)
	}
	if p.hub != nil {
		p.hub.Broadcast(msg)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, SSEMessage) {}

// NopPublisher drops everything. Used by tests and tools that run without a hub.
func NopPublisher() Publisher { return nopPublisher{} }
