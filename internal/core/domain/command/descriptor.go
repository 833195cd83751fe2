package command

import (
	"context"
	"regexp"
	"strings"

	"plugbot/internal/core/domain"
)

// HandlerFunc is the contract for a command handler. It receives the
// resolved command name, the raw argument string and the message, and
// returns the reply text. An empty reply means "send nothing".
type HandlerFunc func(ctx context.Context, cmd string, args string, msg *domain.Message) string

// AllowFunc decides whether the sender of a message may run a command.
type AllowFunc func(msg *domain.Message) bool

// Permission couples an allow predicate with the denial text shown when
// the predicate fails.
type Permission struct {
	Check AllowFunc
	Deny  string
}

// Descriptor describes a registered command: its name, documentation,
// where it is available, and who may run it.
type Descriptor struct {
	Name   string
	Title  string
	Doc    string
	Usage  string
	Direct bool
	Group  bool
	Hidden bool
	// Allow gates execution; nil allows everyone.
	Allow *Permission
	// DenyMessage overrides the permission's denial text for this command.
	DenyMessage string
	Handler     HandlerFunc
}

// Allowed reports whether msg's sender may run this command.
func (d *Descriptor) Allowed(msg *domain.Message) bool {
	return d.Allow == nil || d.Allow.Check == nil || d.Allow.Check(msg)
}

// Denial returns the text to send when the permission check fails.
func (d *Descriptor) Denial() string {
	if d.DenyMessage != "" {
		return d.DenyMessage
	}
	if d.Allow != nil && d.Allow.Deny != "" {
		return d.Allow.Deny
	}

	return "You are not allowed to execute this command."
}

// FreeTextFunc is the contract for a free-text handler. commandFound
// tells it whether the message already matched a command this round,
// freetextFound whether an earlier matcher already replied.
type FreeTextFunc func(ctx context.Context, text string, msg *domain.Message, commandFound, freetextFound bool) string

// FreeText is a handler that inspects every message body, optionally
// gated by a pattern. Matchers run in ascending priority order;
// registration order breaks ties.
type FreeText struct {
	Priority int
	// Pattern gates the handler; nil means it always runs.
	Pattern *regexp.Regexp
	Handler FreeTextFunc
}

// Builder assembles a Descriptor, keeping the metadata declaration next
// to the handler at plugin-init time.
type Builder struct {
	d Descriptor
}

// New starts a descriptor for a command available in both channel kinds.
func New(name string) *Builder {
	return &Builder{d: Descriptor{
		Name:   strings.ToLower(name),
		Direct: true,
		Group:  true,
	}}
}

func (b *Builder) Title(title string) *Builder {
	b.d.Title = title
	return b
}

func (b *Builder) Doc(doc string) *Builder {
	b.d.Doc = doc
	return b
}

func (b *Builder) Usage(usage string) *Builder {
	b.d.Usage = usage
	return b
}

func (b *Builder) Hidden() *Builder {
	b.d.Hidden = true
	return b
}

func (b *Builder) DirectOnly() *Builder {
	b.d.Direct = true
	b.d.Group = false
	return b
}

func (b *Builder) GroupOnly() *Builder {
	b.d.Direct = false
	b.d.Group = true
	return b
}

func (b *Builder) Allow(p *Permission) *Builder {
	b.d.Allow = p
	return b
}

func (b *Builder) Deny(text string) *Builder {
	b.d.DenyMessage = text
	return b
}

func (b *Builder) Handle(h HandlerFunc) *Builder {
	b.d.Handler = h
	return b
}

func (b *Builder) Build() *Descriptor {
	d := b.d
	return &d
}
