package service

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to   string
	text string
	kind domain.ChannelKind
}

type mockTransport struct {
	mu      sync.Mutex
	sent    []sentMessage
	resolve map[string]domain.Identity
}

func newMockTransport() *mockTransport {
	return &mockTransport{resolve: map[string]domain.Identity{}}
}

func (m *mockTransport) Send(_ context.Context, to, text string, kind domain.ChannelKind) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{to: to, text: text, kind: kind})
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) Subscribe(_ string, _ port.InboundHandler, _ bool) {}
func (m *mockTransport) Unsubscribe(_ string)                             {}
func (m *mockTransport) SelfIdentity(_ string) domain.Identity            { return "bot@test" }
func (m *mockTransport) Roster(_ string) []string                         { return nil }

func (m *mockTransport) ResolveIdentity(room, nickname string) (domain.Identity, bool) {
	id, ok := m.resolve[room+"/"+nickname]
	return id, ok
}

func (m *mockTransport) replies() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

type testSource struct {
	name  string
	descs []*command.Descriptor
	fts   []*command.FreeText
}

func (s *testSource) Name() string                    { return s.name }
func (s *testSource) Commands() []*command.Descriptor { return s.descs }
func (s *testSource) FreeText() []*command.FreeText   { return s.fts }

type recordingObserver struct {
	mu    sync.Mutex
	calls []observedCall
}

type observedCall struct {
	body          string
	commandFound  bool
	freetextFound bool
}

func (o *recordingObserver) OnMessage(msg *domain.Message, commandFound, freetextFound bool) {
	o.mu.Lock()
	o.calls = append(o.calls, observedCall{msg.Body, commandFound, freetextFound})
	o.mu.Unlock()
}

func defaultConfig() Config {
	return Config{DirectPrefix: "/", GroupPrefix: "!"}
}

func newTestDispatcher(cfg Config) (*Dispatcher, *command.Registry, *ACL, *mockTransport) {
	registry := command.NewRegistry()
	acl := NewACL(context.Background(), nil)
	transport := newMockTransport()
	d := NewDispatcher(registry, acl, transport, cfg)
	return d, registry, acl, transport
}

func directMessage(body string) *domain.Message {
	return &domain.Message{
		Body:    body,
		Kind:    domain.Direct,
		Sender:  "alice@example.com",
		Address: "alice@example.com",
	}
}

func TestHelpListsVisibleCommands(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ping").Title("Ping the bot").Handle(echoHandler("pong")).Build(),
		command.New("secret").Title("Hidden cmd").Hidden().Handle(echoHandler("ssh")).Build(),
	}})

	d.Handle(context.Background(), directMessage("/help"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "help -- Help Command")
	assert.Contains(t, replies[0].text, "ping -- Ping the bot")
	assert.NotContains(t, replies[0].text, "secret")
	assert.Equal(t, "alice@example.com", replies[0].to)
}

func TestHelpTopic(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())
	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ping").
			Title("Ping the bot").
			Doc("Checks that the bot is alive.").
			Usage("ping [target]").
			Handle(echoHandler("pong")).
			Build(),
	}})

	d.Handle(context.Background(), directMessage("/help ping"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "ping -- Ping the bot")
	assert.Contains(t, replies[0].text, "Checks that the bot is alive.")
	assert.Contains(t, replies[0].text, "Usage: /ping ping [target]")
}

func TestHelpUnknownTopic(t *testing.T) {
	d, _, _, transport := newTestDispatcher(defaultConfig())

	d.Handle(context.Background(), directMessage("/help frobnicate"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "frobnicate is not a valid command")
}

func TestHelpDeniedTopicIsNotValid(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())
	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ban").Title("Ban someone").Allow(d.AdminOnly()).Handle(echoHandler("ok")).Build(),
	}})

	d.Handle(context.Background(), directMessage("/help ban"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "ban is not a valid command")
}

func echoHandler(reply string) command.HandlerFunc {
	return func(_ context.Context, _ string, _ string, _ *domain.Message) string {
		return reply
	}
}

func TestDeniedCommandSkipsHandler(t *testing.T) {
	cfg := defaultConfig()
	d, registry, acl, transport := newTestDispatcher(cfg)
	require.NoError(t, acl.SetRole("alice@example.com", domain.RoleMember))

	var invoked atomic.Int64
	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ban").
			Allow(d.AdminOnly()).
			Deny("Nice try.").
			Handle(func(_ context.Context, _ string, _ string, _ *domain.Message) string {
				invoked.Add(1)
				return "banned"
			}).
			Build(),
	}})

	msg := &domain.Message{
		Body:   "!ban bob@example.com",
		Kind:   domain.Group,
		Sender: "alice@example.com",
		Room:   "lobby",
	}
	d.Handle(context.Background(), msg)

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "Nice try.", replies[0].text)
	assert.Equal(t, int64(0), invoked.Load(), "denied handler never runs")
}

func TestSuffixDerivedPermission(t *testing.T) {
	d, registry, acl, transport := newTestDispatcher(defaultConfig())
	require.NoError(t, acl.SetRole("corp.com", domain.RoleAdmin))

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ban").Allow(d.AdminOnly()).Handle(echoHandler("done")).Build(),
	}})

	msg := &domain.Message{
		Body:    "/ban eve@evil.net",
		Kind:    domain.Direct,
		Sender:  "bob@corp.com",
		Address: "bob@corp.com",
	}
	d.Handle(context.Background(), msg)

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "done", replies[0].text)
}

func TestBannedSenderSilentlyDropped(t *testing.T) {
	d, registry, acl, transport := newTestDispatcher(defaultConfig())
	require.NoError(t, acl.SetRole("mallory@evil.net", domain.RoleBanned))

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ping").Handle(echoHandler("pong")).Build(),
	}})

	msg := &domain.Message{
		Body:    "/ping",
		Kind:    domain.Direct,
		Sender:  "mallory@evil.net",
		Address: "mallory@evil.net",
	}
	d.Handle(context.Background(), msg)

	assert.Empty(t, transport.replies())
}

func TestRequireMembership(t *testing.T) {
	cfg := defaultConfig()
	cfg.RequireMembership = true
	d, registry, acl, transport := newTestDispatcher(cfg)

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ping").Handle(echoHandler("pong")).Build(),
	}})

	d.Handle(context.Background(), directMessage("/ping"))
	assert.Empty(t, transport.replies(), "stranger is dropped")

	require.NoError(t, acl.SetRole("alice@example.com", domain.RoleMember))
	d.Handle(context.Background(), directMessage("/ping"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "pong", replies[0].text)
}

func TestGroupNicknameResolution(t *testing.T) {
	cfg := defaultConfig()
	cfg.RequireMembership = true
	d, registry, acl, transport := newTestDispatcher(cfg)
	transport.resolve["lobby/sneaky"] = "sneaky@example.com"
	require.NoError(t, acl.SetRole("sneaky@example.com", domain.RoleMember))

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("ping").Handle(echoHandler("pong")).Build(),
	}})

	msg := &domain.Message{
		Body:     "!ping",
		Kind:     domain.Group,
		Room:     "lobby",
		Nickname: "sneaky",
	}
	d.Handle(context.Background(), msg)

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "lobby", replies[0].to, "group replies go to the room")
}

func TestUnknownCommandFallsThroughToFreeText(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())

	registry.RegisterCommands(&testSource{name: "x", fts: []*command.FreeText{
		{Priority: 1, Handler: func(_ context.Context, _ string, _ *domain.Message, commandFound, _ bool) string {
			assert.False(t, commandFound, "unknown prefixed token is not a found command")
			return "freetext saw it"
		}},
	}})

	d.Handle(context.Background(), directMessage("/nosuchcommand"))

	replies := transport.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "freetext saw it", replies[0].text)
}

func TestFreeTextSweepFlags(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())

	var sawCommandFound, sawEarlierReply bool
	registry.RegisterCommands(&testSource{name: "x",
		descs: []*command.Descriptor{
			command.New("ping").Handle(echoHandler("pong")).Build(),
		},
		fts: []*command.FreeText{
			{Priority: 1, Handler: func(_ context.Context, _ string, _ *domain.Message, commandFound, _ bool) string {
				sawCommandFound = commandFound
				return "first"
			}},
			{Priority: 2, Handler: func(_ context.Context, _ string, _ *domain.Message, _, freetextFound bool) string {
				sawEarlierReply = freetextFound
				return ""
			}},
		},
	})

	d.Handle(context.Background(), directMessage("/ping"))

	assert.True(t, sawCommandFound, "matchers run even when a command matched")
	assert.True(t, sawEarlierReply, "later matcher sees the earlier reply")

	replies := transport.replies()
	require.Len(t, replies, 2)
	assert.Equal(t, "pong", replies[0].text)
	assert.Equal(t, "first", replies[1].text)
}

func TestFreeTextPatternGating(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())

	var gatedRuns, alwaysRuns atomic.Int64
	registry.RegisterCommands(&testSource{name: "x", fts: []*command.FreeText{
		{Priority: 1, Pattern: regexp.MustCompile(`\bbeer\b`),
			Handler: func(_ context.Context, _ string, _ *domain.Message, _, _ bool) string {
				gatedRuns.Add(1)
				return ""
			}},
		{Priority: 2, Handler: func(_ context.Context, _ string, _ *domain.Message, _, _ bool) string {
			alwaysRuns.Add(1)
			return ""
		}},
	}})

	d.Handle(context.Background(), directMessage("nothing interesting"))
	d.Handle(context.Background(), directMessage("who wants beer tonight"))

	assert.Equal(t, int64(1), gatedRuns.Load())
	assert.Equal(t, int64(2), alwaysRuns.Load())
	assert.Empty(t, transport.replies())
}

func TestHandlerPanicIsContained(t *testing.T) {
	d, registry, _, transport := newTestDispatcher(defaultConfig())

	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("boom").Handle(func(_ context.Context, _ string, _ string, _ *domain.Message) string {
			panic("kaboom")
		}).Build(),
		command.New("ping").Handle(echoHandler("pong")).Build(),
	}})

	d.Handle(context.Background(), directMessage("/boom"))
	d.Handle(context.Background(), directMessage("/ping"))

	replies := transport.replies()
	require.Len(t, replies, 1, "panicking handler produces no reply")
	assert.Equal(t, "pong", replies[0].text)
}

func TestObserverSeesEveryMessage(t *testing.T) {
	d, registry, _, _ := newTestDispatcher(defaultConfig())

	obs := &recordingObserver{}
	d.AddObserver(obs)

	registry.RegisterCommands(&testSource{name: "x",
		descs: []*command.Descriptor{
			command.New("ping").Handle(echoHandler("pong")).Build(),
		},
		fts: []*command.FreeText{
			{Priority: 1, Pattern: regexp.MustCompile(`chatty`),
				Handler: func(_ context.Context, _ string, _ *domain.Message, _, _ bool) string {
					return "yes?"
				}},
		},
	})

	d.Handle(context.Background(), directMessage("/ping"))
	d.Handle(context.Background(), directMessage("feeling chatty today"))
	d.Handle(context.Background(), directMessage("plain message"))

	require.Len(t, obs.calls, 3)
	assert.Equal(t, observedCall{"/ping", true, false}, obs.calls[0])
	assert.Equal(t, observedCall{"feeling chatty today", false, true}, obs.calls[1])
	assert.Equal(t, observedCall{"plain message", false, false}, obs.calls[2])
}

func TestPauseBlocksWithoutDropping(t *testing.T) {
	d, registry, _, _ := newTestDispatcher(defaultConfig())

	var handled atomic.Int64
	registry.RegisterCommands(&testSource{name: "x", descs: []*command.Descriptor{
		command.New("count").Handle(func(_ context.Context, _ string, _ string, _ *domain.Message) string {
			handled.Add(1)
			return ""
		}).Build(),
	}})

	d.Pause()

	const inFlight = 8
	var wg sync.WaitGroup
	for range inFlight {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Handle(context.Background(), directMessage("/count"))
		}()
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), handled.Load(), "no handler runs while paused")

	d.Resume()
	wg.Wait()

	assert.Equal(t, int64(inFlight), handled.Load(), "nothing was dropped")
}

func TestPauseHonorsContextCancellation(t *testing.T) {
	d, _, _, transport := newTestDispatcher(defaultConfig())

	d.Pause()
	defer d.Resume()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Handle(ctx, directMessage("/help"))
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after context cancellation")
	}
	assert.Empty(t, transport.replies())
}

func TestPauseResumeIdempotent(t *testing.T) {
	d, _, _, transport := newTestDispatcher(defaultConfig())

	d.Pause()
	d.Pause()
	d.Resume()
	d.Resume()

	d.Handle(context.Background(), directMessage("/help"))
	assert.Len(t, transport.replies(), 1)
}

func TestSplitBody(t *testing.T) {
	type TestCase struct {
		description string
		body        string
		wantFirst   string
		wantRest    string
	}

	testCases := []TestCase{
		{
			description: "command with args",
			body:        "/acl add bob@corp.com admin",
			wantFirst:   "/acl",
			wantRest:    "add bob@corp.com admin",
		},
		{
			description: "single token",
			body:        "/help",
			wantFirst:   "/help",
			wantRest:    "",
		},
		{
			description: "surrounding whitespace",
			body:        "  /ping   now  ",
			wantFirst:   "/ping",
			wantRest:    "now",
		},
		{
			description: "empty body",
			body:        "",
			wantFirst:   "",
			wantRest:    "",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			first, rest := splitBody(testCase.body)
			assert.Equal(t, testCase.wantFirst, first)
			assert.Equal(t, testCase.wantRest, rest)
		})
	}
}
