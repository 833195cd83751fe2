package plugins

import (
	"context"
	"fmt"
	"sync"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"
)

// Stats counts traffic through the post-hook, which sees every message
// exactly once regardless of dispatch outcome.
type Stats struct {
	cmds []*command.Descriptor

	mu       sync.Mutex
	messages int64
	commands int64
	freetext int64
}

func NewStats(_ port.BotAPI, _ map[string]any) (port.Plugin, error) {
	s := &Stats{}
	s.cmds = []*command.Descriptor{
		command.New("stats").
			Title("Usage statistics").
			Doc("Reports how many messages, commands and free-text replies the bot has seen since the plugin loaded.").
			Handle(s.handleStats).
			Build(),
	}

	return s, nil
}

func (s *Stats) Name() string { return "stats" }

func (s *Stats) Commands() []*command.Descriptor { return s.cmds }

func (s *Stats) FreeText() []*command.FreeText { return nil }

func (s *Stats) OnMessage(_ *domain.Message, commandFound, freetextFound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages++
	if commandFound {
		s.commands++
	}
	if freetextFound {
		s.freetext++
	}
}

func (s *Stats) handleStats(_ context.Context, _ string, _ string, _ *domain.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fmt.Sprintf("messages: %d, commands: %d, free-text replies: %d",
		s.messages, s.commands, s.freetext)
}
