package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

// Config is the dispatcher's constructor contract, filled from the
// parsed configuration.
type Config struct {
	DirectPrefix      string
	GroupPrefix       string
	RequireMembership bool
}

// Dispatcher turns inbound messages into handler invocations: pause
// gate, ACL admission, prefix parsing, permission-gated command
// invocation, the free-text sweep and the post-hook, strictly in that
// order for each message. Messages from different senders are handled
// concurrently; the dispatcher holds no per-message state.
type Dispatcher struct {
	registry  *command.Registry
	acl       *ACL
	transport port.Transport
	cfg       Config
	gate      *gate

	mu        sync.Mutex
	observers []port.Observer
}

func NewDispatcher(registry *command.Registry, acl *ACL, transport port.Transport, cfg Config) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		acl:       acl,
		transport: transport,
		cfg:       cfg,
		gate:      newGate(),
	}

	registry.RegisterCommands(d)

	return d
}

// Pause stops new messages from proceeding past the gate. In-flight
// handlers are not cancelled.
func (d *Dispatcher) Pause() {
	log.Info().Msg("pausing dispatch")
	d.gate.pause()
}

// Resume releases all messages blocked on the gate.
func (d *Dispatcher) Resume() {
	log.Info().Msg("resuming dispatch")
	d.gate.resume()
}

// AddObserver registers a post-hook observer.
func (d *Dispatcher) AddObserver(o port.Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// RemoveObserver removes a previously added observer.
func (d *Dispatcher) RemoveObserver(o port.Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.observers[:0]
	for _, have := range d.observers {
		if have != o {
			kept = append(kept, have)
		}
	}
	d.observers = kept
}

// Handle processes one inbound message through the full pipeline. It is
// the handler subscribed to the transport's message event.
func (d *Dispatcher) Handle(ctx context.Context, msg *domain.Message) {
	if err := d.gate.wait(ctx); err != nil {
		log.Debug().Err(err).Msg("dropping message, context done while paused")
		return
	}

	if !d.shouldAnswer(msg) {
		return
	}

	prefix := d.prefix(msg.Kind)
	first, rest := splitBody(msg.Body)

	commandFound := false
	if prefix != "" && strings.HasPrefix(first, prefix) {
		name := strings.TrimPrefix(first, prefix)
		if desc, ok := d.registry.Lookup(msg.Kind, name); ok {
			commandFound = true
			var reply string
			if desc.Allowed(msg) {
				reply = d.invoke(ctx, desc, rest, msg)
			} else {
				reply = desc.Denial()
			}
			d.reply(ctx, msg, reply)
		}
	}

	freetextFound := false
	for _, ft := range d.registry.FreeTextSnapshot() {
		if ft.Pattern != nil && !ft.Pattern.MatchString(msg.Body) {
			continue
		}
		reply := d.invokeFreeText(ctx, ft, msg, commandFound, freetextFound)
		if reply != "" {
			freetextFound = true
			d.reply(ctx, msg, reply)
		}
	}

	d.mu.Lock()
	observers := make([]port.Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()
	for _, o := range observers {
		o.OnMessage(msg, commandFound, freetextFound)
	}
}

// invoke runs a command handler, converting a panic into a logged
// no-reply so a broken handler never kills the dispatch loop.
func (d *Dispatcher) invoke(ctx context.Context, desc *command.Descriptor, args string, msg *domain.Message) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("command", desc.Name).
				Str("sender", string(msg.Sender)).Msg("command handler panicked")
			reply = ""
		}
	}()

	if desc.Handler == nil {
		return ""
	}

	return desc.Handler(ctx, desc.Name, args, msg)
}

func (d *Dispatcher) invokeFreeText(ctx context.Context, ft *command.FreeText, msg *domain.Message, commandFound, freetextFound bool) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sender", string(msg.Sender)).
				Msg("free-text handler panicked")
			reply = ""
		}
	}()

	return ft.Handler(ctx, msg.Body, msg, commandFound, freetextFound)
}

func (d *Dispatcher) reply(ctx context.Context, msg *domain.Message, text string) {
	if text == "" {
		return
	}

	if err := d.transport.Send(ctx, msg.ReplyAddress(), text, msg.Kind); err != nil {
		log.Error().Err(err).Str("to", msg.ReplyAddress()).Msg("failed to send reply")
	}
}

// shouldAnswer is the admission check: banned senders and, when
// membership is required, non-members are silently dropped.
func (d *Dispatcher) shouldAnswer(msg *domain.Message) bool {
	id, ok := d.RealIdentity(msg)
	if ok && d.acl.Check(id, domain.RoleBanned) {
		log.Debug().Str("identity", string(id)).Msg("dropping message from banned sender")
		return false
	}
	if !d.cfg.RequireMembership {
		return true
	}

	return ok && d.acl.Check(id, domain.RoleMember, domain.RoleAdmin, domain.RoleOwner)
}

// RealIdentity resolves the durable identity behind a message. Group
// messages without a transport-resolved sender go through the roster.
func (d *Dispatcher) RealIdentity(msg *domain.Message) (domain.Identity, bool) {
	if msg.Sender != "" {
		return msg.Sender, true
	}
	if msg.Kind == domain.Group {
		return d.transport.ResolveIdentity(msg.Room, msg.Nickname)
	}

	return "", false
}

// OwnerOnly allows only identities holding the owner role.
func (d *Dispatcher) OwnerOnly() *command.Permission {
	return &command.Permission{
		Check: d.fromRoles(domain.RoleOwner),
		Deny:  "You are not my owner",
	}
}

// AdminOnly allows owners and admins.
func (d *Dispatcher) AdminOnly() *command.Permission {
	return &command.Permission{
		Check: d.fromRoles(domain.RoleOwner, domain.RoleAdmin),
		Deny:  "You are not my admin",
	}
}

// MembersOnly allows owners, admins and members.
func (d *Dispatcher) MembersOnly() *command.Permission {
	return &command.Permission{
		Check: d.fromRoles(domain.RoleOwner, domain.RoleAdmin, domain.RoleMember),
		Deny:  "You are not a member",
	}
}

func (d *Dispatcher) fromRoles(roles ...domain.Role) command.AllowFunc {
	return func(msg *domain.Message) bool {
		id, ok := d.RealIdentity(msg)
		return ok && d.acl.Check(id, roles...)
	}
}

// Name makes the dispatcher a command source for its built-ins.
func (d *Dispatcher) Name() string { return "core" }

// Commands returns the built-in command set.
func (d *Dispatcher) Commands() []*command.Descriptor {
	return []*command.Descriptor{
		command.New("help").
			Title("Help Command").
			Doc("Returns the list of commands if no topic is specified, otherwise help on the specific topic.").
			Usage("help [topic]").
			Handle(d.handleHelp).
			Build(),
	}
}

// FreeText returns no built-in matchers.
func (d *Dispatcher) FreeText() []*command.FreeText { return nil }

func (d *Dispatcher) handleHelp(_ context.Context, _ string, args string, msg *domain.Message) string {
	prefix := d.prefix(msg.Kind)

	var sb strings.Builder
	args = strings.TrimSpace(args)
	if args != "" {
		if desc, ok := d.registry.Lookup(msg.Kind, args); ok && desc.Allowed(msg) {
			fmt.Fprintf(&sb, "%s -- %s\n", desc.Name, desc.Title)
			fmt.Fprintf(&sb, " %s\n", desc.Doc)
			fmt.Fprintf(&sb, "Usage: %s%s %s\n", prefix, desc.Name, desc.Usage)
			return sb.String()
		}
		fmt.Fprintf(&sb, "%s is not a valid command", args)
	}

	sb.WriteString("Commands:\n")
	for _, desc := range d.registry.Visible(msg.Kind, msg) {
		fmt.Fprintf(&sb, "%s -- %s\n", desc.Name, desc.Title)
	}
	sb.WriteString("---------\n")

	return sb.String()
}

func (d *Dispatcher) prefix(kind domain.ChannelKind) string {
	if kind == domain.Group {
		return d.cfg.GroupPrefix
	}

	return d.cfg.DirectPrefix
}

// splitBody splits a body on its first whitespace run into the command
// token and the remaining argument string.
func splitBody(body string) (string, string) {
	body = strings.TrimSpace(body)
	i := strings.IndexFunc(body, unicode.IsSpace)
	if i < 0 {
		return body, ""
	}

	return body[:i], strings.TrimLeftFunc(body[i:], unicode.IsSpace)
}

// gate is the pause/resume semaphore. The channel is closed while
// running; Pause swaps in an open one that waiters block on.
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate() *gate {
	g := &gate{ch: make(chan struct{})}
	close(g.ch)

	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
