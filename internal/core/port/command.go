package port

import (
	"context"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
)

// Plugin contributes commands and free-text matchers to the bot. The
// returned slices must be stable for the plugin's lifetime; the
// registry removes on unregister exactly what it recorded on register.
type Plugin interface {
	Name() string
	Commands() []*command.Descriptor
	FreeText() []*command.FreeText
}

// Observer sees every message exactly once, after command dispatch and
// the free-text sweep have finished for it.
type Observer interface {
	OnMessage(msg *domain.Message, commandFound, freetextFound bool)
}

// ACL answers role-membership queries with domain-suffix fallback.
type ACL interface {
	Role(id domain.Identity) domain.Role
	SetRole(id domain.Identity, role domain.Role) error
	Remove(id domain.Identity)
	Check(id domain.Identity, roles ...domain.Role) bool
	Count(roles ...domain.Role) int
	MatchingSuffix(id domain.Identity) (string, bool)
}

// BotAPI is the surface a plugin handler body may call.
type BotAPI interface {
	Send(ctx context.Context, to string, text string, kind domain.ChannelKind) error
	ACL() ACL
	// RealIdentity resolves the durable, ACL-checkable identity behind a
	// message, mapping group nicknames back through the transport.
	RealIdentity(msg *domain.Message) (domain.Identity, bool)

	// Permission predicates for command descriptors.
	OwnerOnly() *command.Permission
	AdminOnly() *command.Permission
	MembersOnly() *command.Permission

	// Rehash reloads the plugin set behind the dispatch pause gate.
	Rehash()
	// Shutdown stops the bot.
	Shutdown()
}
