package service

import (
	"sync"

	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

// PluginFactory builds a plugin instance from the bot API and its
// config blob.
type PluginFactory func(api port.BotAPI, config map[string]any) (port.Plugin, error)

// PluginEntry is one configured plugin: which factory to use and what
// to hand it.
type PluginEntry struct {
	Name   string         `mapstructure:"name"`
	Config map[string]any `mapstructure:"config"`
}

// PluginManager instantiates configured plugins and registers their
// commands, matchers and observers. One plugin's failure never aborts
// the others.
type PluginManager struct {
	registry   *command.Registry
	dispatcher *Dispatcher
	api        port.BotAPI

	mu        sync.Mutex
	factories map[string]PluginFactory
	entries   []PluginEntry
	active    []port.Plugin
}

func NewPluginManager(api port.BotAPI, registry *command.Registry, dispatcher *Dispatcher) *PluginManager {
	return &PluginManager{
		registry:   registry,
		dispatcher: dispatcher,
		api:        api,
		factories:  make(map[string]PluginFactory),
	}
}

// RegisterFactory makes a plugin constructible by name.
func (m *PluginManager) RegisterFactory(name string, f PluginFactory) {
	m.mu.Lock()
	m.factories[name] = f
	m.mu.Unlock()
}

// SetEntries replaces the configured plugin list. Takes effect on the
// next Start or Reset.
func (m *PluginManager) SetEntries(entries []PluginEntry) {
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
}

// Start instantiates and registers every configured plugin.
func (m *PluginManager) Start() {
	log.Info().Msg("starting plugins")

	m.mu.Lock()
	entries := make([]PluginEntry, len(m.entries))
	copy(entries, m.entries)
	m.mu.Unlock()

	for _, entry := range entries {
		if err := m.startOne(entry); err != nil {
			log.Error().Err(err).Str("plugin", entry.Name).Msg("registering plugin FAILED")
			continue
		}
		log.Info().Str("plugin", entry.Name).Msg("registering plugin OK")
	}
}

func (m *PluginManager) startOne(entry PluginEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	m.mu.Lock()
	factory, ok := m.factories[entry.Name]
	m.mu.Unlock()
	if !ok {
		return &UnknownPluginError{Name: entry.Name}
	}

	p, err := factory(m.api, entry.Config)
	if err != nil {
		return err
	}

	m.registry.RegisterCommands(p)
	if o, ok := p.(port.Observer); ok {
		m.dispatcher.AddObserver(o)
	}

	m.mu.Lock()
	m.active = append(m.active, p)
	m.mu.Unlock()

	return nil
}

// Stop unregisters every active plugin. Each unregistration is wrapped
// so one failure does not block the rest.
func (m *PluginManager) Stop() {
	log.Info().Msg("stopping plugins")

	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()

	for _, p := range active {
		m.stopOne(p)
	}
}

func (m *PluginManager) stopOne(p port.Plugin) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("plugin", p.Name()).
				Msg("unregistering plugin FAILED")
		}
	}()

	if o, ok := p.(port.Observer); ok {
		m.dispatcher.RemoveObserver(o)
	}
	m.registry.UnregisterCommands(p)
}

// Reset tears the plugin set down and builds it back up. Callers must
// hold the dispatch gate paused around it so no message is dispatched
// against a half-torn-down registry.
func (m *PluginManager) Reset() {
	m.Stop()
	m.Start()
}

// UnknownPluginError reports a configured plugin with no registered
// factory.
type UnknownPluginError struct {
	Name string
}

func (e *UnknownPluginError) Error() string {
	return "no factory for plugin " + e.Name
}

type recoveredError struct {
	value any
}

func (e *recoveredError) Error() string {
	return "plugin panicked during registration"
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}

	return &recoveredError{value: r}
}
