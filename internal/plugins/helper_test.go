package plugins

import (
	"context"
	"sync"
	"testing"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"
	"plugbot/internal/core/service"

	"github.com/stretchr/testify/require"
)

type fakeSent struct {
	to   string
	text string
	kind domain.ChannelKind
}

// fakeAPI backs plugin tests with a real in-memory ACL and recorded
// sends.
type fakeAPI struct {
	acl *service.ACL

	mu        sync.Mutex
	sent      []fakeSent
	sendErr   error
	rehashes  int
	shutdowns chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		acl:       service.NewACL(context.Background(), nil),
		shutdowns: make(chan struct{}, 1),
	}
}

func (f *fakeAPI) Send(_ context.Context, to, text string, kind domain.ChannelKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, fakeSent{to: to, text: text, kind: kind})
	return nil
}

func (f *fakeAPI) ACL() port.ACL { return f.acl }

func (f *fakeAPI) RealIdentity(msg *domain.Message) (domain.Identity, bool) {
	return msg.Sender, msg.Sender != ""
}

func (f *fakeAPI) OwnerOnly() *command.Permission {
	return f.permission("You are not my owner", domain.RoleOwner)
}

func (f *fakeAPI) AdminOnly() *command.Permission {
	return f.permission("You are not my admin", domain.RoleOwner, domain.RoleAdmin)
}

func (f *fakeAPI) MembersOnly() *command.Permission {
	return f.permission("You are not a member", domain.RoleOwner, domain.RoleAdmin, domain.RoleMember)
}

func (f *fakeAPI) permission(deny string, roles ...domain.Role) *command.Permission {
	return &command.Permission{
		Deny: deny,
		Check: func(msg *domain.Message) bool {
			id, ok := f.RealIdentity(msg)
			return ok && f.acl.Check(id, roles...)
		},
	}
}

func (f *fakeAPI) Rehash() {
	f.mu.Lock()
	f.rehashes++
	f.mu.Unlock()
}

func (f *fakeAPI) Shutdown() {
	select {
	case f.shutdowns <- struct{}{}:
	default:
	}
}

func (f *fakeAPI) replies() []fakeSent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeSent, len(f.sent))
	copy(out, f.sent)
	return out
}

func findCommand(t *testing.T, p port.Plugin, name string) *command.Descriptor {
	t.Helper()
	for _, desc := range p.Commands() {
		if desc.Name == name {
			return desc
		}
	}
	t.Fatalf("plugin %s has no command %s", p.Name(), name)
	return nil
}

func run(t *testing.T, p port.Plugin, name, args string, msg *domain.Message) string {
	t.Helper()
	desc := findCommand(t, p, name)
	require.NotNil(t, desc.Handler)
	return desc.Handler(context.Background(), name, args, msg)
}

func fromSender(sender domain.Identity) *domain.Message {
	return &domain.Message{
		Kind:    domain.Direct,
		Sender:  sender,
		Address: string(sender),
	}
}
