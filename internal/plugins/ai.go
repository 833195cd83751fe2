package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

const defaultMentionPattern = `(?i)\bplugbot\b`

// AI answers prompts through a text generator: explicitly via the ai
// command, and conversationally whenever the bot is mentioned and
// nothing else has replied to the message.
type AI struct {
	api  port.BotAPI
	gen  port.TextGenerator
	cmds []*command.Descriptor
	fts  []*command.FreeText
}

func NewAI(api port.BotAPI, config map[string]any, gen port.TextGenerator) (port.Plugin, error) {
	pattern := defaultMentionPattern
	if v, ok := config["mention_regex"].(string); ok && v != "" {
		pattern = v
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid mention_regex: %w", err)
	}

	a := &AI{api: api, gen: gen}
	a.cmds = []*command.Descriptor{
		command.New("ai").
			Title("Ask the language model").
			Doc("Sends your prompt to the configured language model and replies with its answer.").
			Usage("prompt").
			Allow(api.MembersOnly()).
			Handle(a.handleAI).
			Build(),
	}
	a.fts = []*command.FreeText{
		{Priority: 10, Pattern: re, Handler: a.handleMention},
	}

	return a, nil
}

func (a *AI) Name() string { return "ai" }

func (a *AI) Commands() []*command.Descriptor { return a.cmds }

func (a *AI) FreeText() []*command.FreeText { return a.fts }

func (a *AI) handleAI(ctx context.Context, _ string, args string, _ *domain.Message) string {
	prompt := strings.TrimSpace(args)
	if prompt == "" {
		return "Ask me something: ai <prompt>"
	}

	return a.generate(ctx, prompt, "The model is unavailable right now.")
}

// handleMention stays quiet when a command or an earlier matcher
// already replied to this message.
func (a *AI) handleMention(ctx context.Context, text string, _ *domain.Message, commandFound, freetextFound bool) string {
	if commandFound || freetextFound {
		return ""
	}

	return a.generate(ctx, text, "")
}

func (a *AI) generate(ctx context.Context, prompt, fallback string) string {
	resp, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("text generation failed")
		return fallback
	}

	return resp
}
