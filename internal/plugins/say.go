package plugins

import (
	"context"
	"fmt"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

var saySchema = []command.Field{
	{Name: "room", Default: command.String},
}

// Say parrots text into a group chat on the owner's behalf.
type Say struct {
	api  port.BotAPI
	cmds []*command.Descriptor
}

func NewSay(api port.BotAPI, _ map[string]any) (port.Plugin, error) {
	s := &Say{api: api}
	s.cmds = []*command.Descriptor{
		command.New("say").
			Title("Have the bot parrot some text in a channel").
			Doc("Sends the given text to the given room as the bot.").
			Usage("[room] [text]").
			Allow(api.OwnerOnly()).
			Deny("I'm not your monkey.").
			Handle(s.handleSay).
			Build(),
	}

	return s, nil
}

func (s *Say) Name() string { return "say" }

func (s *Say) Commands() []*command.Descriptor { return s.cmds }

func (s *Say) FreeText() []*command.FreeText { return nil }

func (s *Say) handleSay(ctx context.Context, _ string, args string, _ *domain.Message) string {
	parsed, err := command.ParseArgs(args, saySchema)
	if err != nil {
		return err.Error()
	}
	if parsed.Tail == "" {
		return "Insufficient parameters."
	}

	room := parsed.String("room")
	if err := s.api.Send(ctx, room, parsed.Tail, domain.Group); err != nil {
		log.Error().Err(err).Str("room", room).Msg("say failed")
		return fmt.Sprintf("Could not reach %s.", room)
	}

	return "Sent."
}
