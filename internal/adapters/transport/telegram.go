package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/port"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// IdentityDomain suffixes all Telegram-derived identities so the ACL
// suffix walk can grant roles network-wide.
const IdentityDomain = "telegram"

// Telegram adapts the Telegram Bot API to port.Transport. Private
// chats map to direct messages, group and supergroup chats to group
// messages. Telegram always reveals the real sender, so messages carry
// a resolved identity and the roster fallback is never needed.
type Telegram struct {
	bot      *bot.Bot
	selfName string

	mu       sync.Mutex
	handlers map[string]subscription
}

type subscription struct {
	handler    port.InboundHandler
	concurrent bool
}

func NewTelegram(token, selfName string) (*Telegram, error) {
	t := &Telegram{
		selfName: selfName,
		handlers: make(map[string]subscription),
	}

	b, err := bot.New(token, bot.WithDefaultHandler(t.route))
	if err != nil {
		return nil, fmt.Errorf("failed initializing telegram bot: %w", err)
	}
	t.bot = b

	return t, nil
}

// Run blocks polling for updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	t.bot.Start(ctx)
}

func (t *Telegram) Send(ctx context.Context, to string, text string, _ domain.ChannelKind) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("not a telegram chat id: %q", to)
	}

	_, err = t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("failed to send message")
		return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
	}

	return nil
}

func (t *Telegram) Subscribe(event string, handler port.InboundHandler, concurrent bool) {
	t.mu.Lock()
	t.handlers[event] = subscription{handler: handler, concurrent: concurrent}
	t.mu.Unlock()
}

func (t *Telegram) Unsubscribe(event string) {
	t.mu.Lock()
	delete(t.handlers, event)
	t.mu.Unlock()
}

func (t *Telegram) SelfIdentity(_ string) domain.Identity {
	return SenderIdentity(t.selfName, 0)
}

// Roster is empty: the Telegram Bot API exposes no full member list
// for a chat.
func (t *Telegram) Roster(_ string) []string { return nil }

// ResolveIdentity always fails; inbound messages already carry the
// resolved sender.
func (t *Telegram) ResolveIdentity(_, _ string) (domain.Identity, bool) {
	return "", false
}

func (t *Telegram) route(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	msg := toMessage(update.Message)

	t.mu.Lock()
	sub, ok := t.handlers["message"]
	t.mu.Unlock()
	if !ok {
		log.Debug().Msg("no message handler subscribed, dropping update")
		return
	}

	if sub.concurrent {
		go sub.handler(ctx, msg)
		return
	}
	sub.handler(ctx, msg)
}

func toMessage(m *models.Message) *domain.Message {
	kind := domain.Group
	if m.Chat.Type == "private" {
		kind = domain.Direct
	}

	chatID := strconv.FormatInt(m.Chat.ID, 10)
	msg := &domain.Message{
		Body:    m.Text,
		Kind:    kind,
		Address: chatID,
	}
	if m.From != nil {
		msg.Sender = SenderIdentity(m.From.Username, m.From.ID)
		msg.Nickname = nickname(m.From)
	}
	if kind == domain.Group {
		msg.Room = chatID
	}

	return msg
}

// SenderIdentity renders a Telegram user in user@domain form so the
// ACL suffix decomposition applies. The numeric ID is the fallback for
// users without a username.
func SenderIdentity(username string, id int64) domain.Identity {
	if username != "" {
		return domain.Identity(strings.ToLower(username) + "@" + IdentityDomain)
	}

	return domain.Identity(fmt.Sprintf("%d@%s", id, IdentityDomain))
}

func nickname(u *models.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}

	return u.FirstName
}
