package plugins

import (
	"context"
	"fmt"
	"sync"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

var tellSchema = []command.Field{
	{Name: "identity", Default: command.String},
}

// Tell queues a note for an identity and delivers it the next time
// that identity sends any message.
type Tell struct {
	api  port.BotAPI
	cmds []*command.Descriptor

	mu      sync.Mutex
	pending map[domain.Identity][]pendingNote
}

type pendingNote struct {
	id   uuid.UUID
	from domain.Identity
	text string
}

func NewTell(api port.BotAPI, _ map[string]any) (port.Plugin, error) {
	t := &Tell{
		api:     api,
		pending: make(map[domain.Identity][]pendingNote),
	}
	t.cmds = []*command.Descriptor{
		command.New("tell").
			Title("Leave a note for an identity").
			Doc("Queues a note; the recipient gets it the next time they talk to the bot.").
			Usage("identity text").
			Allow(api.MembersOnly()).
			Handle(t.handleTell).
			Build(),
	}

	return t, nil
}

func (t *Tell) Name() string { return "tell" }

func (t *Tell) Commands() []*command.Descriptor { return t.cmds }

func (t *Tell) FreeText() []*command.FreeText { return nil }

func (t *Tell) handleTell(_ context.Context, _ string, args string, msg *domain.Message) string {
	parsed, err := command.ParseArgs(args, tellSchema)
	if err != nil {
		return err.Error()
	}
	if parsed.Tail == "" {
		return "Insufficient parameters."
	}

	from, _ := t.api.RealIdentity(msg)
	id, err := uuid.NewV4()
	if err != nil {
		log.Error().Err(err).Msg("failed to mint note id")
		return "Could not record the note."
	}

	to := domain.Identity(parsed.String("identity"))
	t.mu.Lock()
	t.pending[to] = append(t.pending[to], pendingNote{id: id, from: from, text: parsed.Tail})
	t.mu.Unlock()

	return fmt.Sprintf("Noted. %s will get your message.", to)
}

// OnMessage delivers pending notes as soon as their recipient shows up.
func (t *Tell) OnMessage(msg *domain.Message, _, _ bool) {
	id, ok := t.api.RealIdentity(msg)
	if !ok {
		return
	}

	t.mu.Lock()
	notes := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()

	for _, n := range notes {
		text := fmt.Sprintf("%s left you a note (%s): %s", n.from, n.id, n.text)
		if err := t.api.Send(context.Background(), msg.Address, text, domain.Direct); err != nil {
			log.Error().Err(err).Str("identity", string(id)).Msg("failed to deliver note")
		}
	}
}
