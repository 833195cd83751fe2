package port

import (
	"context"

	"plugbot/internal/core/domain"
)

// InboundHandler processes one inbound message.
type InboundHandler func(ctx context.Context, msg *domain.Message)

// Transport is the narrow slice of a chat network session the core
// needs. Connection management, resilience and encryption are the
// adapter's concern.
type Transport interface {
	// Send fires an outbound message. Failures are the transport's
	// concern; the core does not retry.
	Send(ctx context.Context, to string, text string, kind domain.ChannelKind) error
	// Subscribe registers the handler for a named inbound event.
	// With concurrent set, each message is handled on its own goroutine.
	Subscribe(event string, handler InboundHandler, concurrent bool)
	// Unsubscribe removes the handler for a named inbound event.
	Unsubscribe(event string)
	// SelfIdentity returns the bot's own identity inside a room.
	SelfIdentity(room string) domain.Identity
	// Roster lists the nicknames currently present in a room.
	Roster(room string) []string
	// ResolveIdentity maps a room nickname to a durable identity.
	ResolveIdentity(room, nickname string) (domain.Identity, bool)
}
