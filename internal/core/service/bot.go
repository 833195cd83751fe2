package service

import (
	"context"
	"sync"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

const messageEvent = "message"

// Bot composes the transport, ACL, command registry, dispatcher and
// plugin manager into one running chat bot. It is the port.BotAPI
// handed to plugins.
type Bot struct {
	transport  port.Transport
	acl        *ACL
	registry   *command.Registry
	dispatcher *Dispatcher
	plugins    *PluginManager

	done     chan struct{}
	stopOnce sync.Once
}

func NewBot(transport port.Transport, acl *ACL, cfg Config) *Bot {
	registry := command.NewRegistry()
	dispatcher := NewDispatcher(registry, acl, transport, cfg)

	b := &Bot{
		transport:  transport,
		acl:        acl,
		registry:   registry,
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
	b.plugins = NewPluginManager(b, registry, dispatcher)

	return b
}

// Plugins exposes the lifecycle manager for factory registration and
// configuration.
func (b *Bot) Plugins() *PluginManager { return b.plugins }

// Start subscribes to the transport and brings up the plugin set.
func (b *Bot) Start() {
	log.Info().Str("acl", b.acl.Summary()).Msg("starting bot")
	b.transport.Subscribe(messageEvent, b.dispatcher.Handle, true)
	b.plugins.Start()
}

// Stop tears down the plugin set and unsubscribes from the transport.
func (b *Bot) Stop() {
	b.plugins.Stop()
	b.transport.Unsubscribe(messageEvent)
}

// Rehash reloads the plugin set behind the pause gate, so no message
// observes a partially updated registry.
func (b *Bot) Rehash() {
	log.Info().Msg("rehash started")
	b.dispatcher.Pause()
	defer b.dispatcher.Resume()

	b.plugins.Reset()
}

// Shutdown stops the bot and releases anyone waiting on Done.
func (b *Bot) Shutdown() {
	b.stopOnce.Do(func() {
		log.Info().Msg("shutting down bot")
		b.Stop()
		close(b.done)
	})
}

// Done is closed when Shutdown has run.
func (b *Bot) Done() <-chan struct{} { return b.done }

func (b *Bot) Send(ctx context.Context, to string, text string, kind domain.ChannelKind) error {
	return b.transport.Send(ctx, to, text, kind)
}

func (b *Bot) ACL() port.ACL { return b.acl }

func (b *Bot) RealIdentity(msg *domain.Message) (domain.Identity, bool) {
	return b.dispatcher.RealIdentity(msg)
}

func (b *Bot) OwnerOnly() *command.Permission { return b.dispatcher.OwnerOnly() }

func (b *Bot) AdminOnly() *command.Permission { return b.dispatcher.AdminOnly() }

func (b *Bot) MembersOnly() *command.Permission { return b.dispatcher.MembersOnly() }
