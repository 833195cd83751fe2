package command

import (
	"sort"
	"strings"
	"sync"

	"plugbot/internal/core/domain"

	"github.com/rs/zerolog/log"
)

// Source is anything that contributes commands and free-text matchers,
// typically a plugin. Descriptor and matcher slices must be stable for
// the lifetime of the source.
type Source interface {
	Name() string
	Commands() []*Descriptor
	FreeText() []*FreeText
}

type entry struct {
	desc   *Descriptor
	source string
}

type freetextEntry struct {
	ft     *FreeText
	source string
	seq    uint64
}

type contribution struct {
	descs []*Descriptor
	fts   []*FreeText
}

// Registry holds the active commands per channel kind and the
// priority-ordered free-text matcher list. Mutations happen under a
// write lock so concurrent lookups see either the pre- or post-mutation
// state, never a partial one.
type Registry struct {
	mu       sync.RWMutex
	direct   map[string]entry
	group    map[string]entry
	freetext []freetextEntry
	bySource map[string]contribution
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		direct:   make(map[string]entry),
		group:    make(map[string]entry),
		bySource: make(map[string]contribution),
	}
}

// RegisterCommands adds everything source contributes. A name already
// registered for a channel kind is overwritten; last registration wins.
func (r *Registry) RegisterCommands(source Source) {
	descs := source.Commands()
	fts := source.FreeText()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descs {
		name := strings.ToLower(d.Name)
		log.Info().Str("command", name).Str("source", source.Name()).
			Msg("adding command handler to registry")
		if d.Direct {
			r.direct[name] = entry{desc: d, source: source.Name()}
		}
		if d.Group {
			r.group[name] = entry{desc: d, source: source.Name()}
		}
	}

	for _, ft := range fts {
		r.seq++
		r.freetext = append(r.freetext, freetextEntry{
			ft:     ft,
			source: source.Name(),
			seq:    r.seq,
		})
	}
	sort.SliceStable(r.freetext, func(i, j int) bool {
		if r.freetext[i].ft.Priority != r.freetext[j].ft.Priority {
			return r.freetext[i].ft.Priority < r.freetext[j].ft.Priority
		}
		return r.freetext[i].seq < r.freetext[j].seq
	})

	r.bySource[source.Name()] = contribution{descs: descs, fts: fts}
}

// UnregisterCommands removes exactly what source contributed. A name
// since overwritten by another source is left alone.
func (r *Registry) UnregisterCommands(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contrib, ok := r.bySource[source.Name()]
	if !ok {
		log.Warn().Str("source", source.Name()).Msg("source not in registry")
		return
	}

	for _, d := range contrib.descs {
		name := strings.ToLower(d.Name)
		if e, ok := r.direct[name]; ok && e.desc == d {
			delete(r.direct, name)
		}
		if e, ok := r.group[name]; ok && e.desc == d {
			delete(r.group, name)
		}
	}

	if len(contrib.fts) > 0 {
		kept := r.freetext[:0]
		for _, fe := range r.freetext {
			if !containsFreeText(contrib.fts, fe.ft) {
				kept = append(kept, fe)
			}
		}
		r.freetext = kept
	}

	delete(r.bySource, source.Name())
}

func containsFreeText(fts []*FreeText, ft *FreeText) bool {
	for _, f := range fts {
		if f == ft {
			return true
		}
	}

	return false
}

// Lookup resolves a command name for a channel kind.
func (r *Registry) Lookup(kind domain.ChannelKind, name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.commandMap(kind)[strings.ToLower(name)]
	if !ok {
		return nil, false
	}

	return e.desc, true
}

// Visible returns the non-hidden commands of a channel kind whose
// permission check passes for msg's sender, sorted by name.
func (r *Registry) Visible(kind domain.ChannelKind, msg *domain.Message) []*Descriptor {
	r.mu.RLock()
	descs := make([]*Descriptor, 0, len(r.commandMap(kind)))
	for _, e := range r.commandMap(kind) {
		descs = append(descs, e.desc)
	}
	r.mu.RUnlock()

	visible := descs[:0]
	for _, d := range descs {
		if !d.Hidden && d.Allowed(msg) {
			visible = append(visible, d)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Name < visible[j].Name })

	return visible
}

// FreeTextSnapshot returns the matcher list in sweep order. The slice
// is a copy; a concurrent registration does not disturb a running sweep.
func (r *Registry) FreeTextSnapshot() []*FreeText {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*FreeText, len(r.freetext))
	for i, fe := range r.freetext {
		out[i] = fe.ft
	}

	return out
}

func (r *Registry) commandMap(kind domain.ChannelKind) map[string]entry {
	if kind == domain.Group {
		return r.group
	}

	return r.direct
}
