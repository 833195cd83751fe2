package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

// ACL maps identities to roles and answers membership queries with
// domain-suffix fallback: a role granted to corp.example.com covers
// every user@host under it.
//
// The in-memory table is the source of truth. A configured store is
// loaded at startup and written through on mutation; if it fails, the
// ACL degrades to memory-only and keeps working.
type ACL struct {
	mu    sync.Mutex
	roles map[string]domain.Role
	store port.ACLStore
}

// NewACL builds an ACL, loading any persisted entries from store.
// A nil store means memory-only.
func NewACL(ctx context.Context, store port.ACLStore) *ACL {
	a := &ACL{
		roles: make(map[string]domain.Role),
		store: store,
	}

	if store != nil {
		persisted, err := store.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("acl store unavailable, continuing in memory only")
			a.store = nil
		} else {
			for id, role := range persisted {
				a.roles[id] = role
			}
		}
	}

	return a
}

// Seed applies initial identity→role assignments from configuration.
// An invalid role token fails the whole seed before any state changes.
func (a *ACL) Seed(seed map[string]string) error {
	parsed := make(map[string]domain.Role, len(seed))
	for id, token := range seed {
		role, err := domain.ParseRole(token)
		if err != nil {
			return fmt.Errorf("acl seed for %q: %w", id, err)
		}
		parsed[id] = role
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, role := range parsed {
		a.roles[id] = role
	}

	return nil
}

// Role returns the role for id, falling back through its domain
// suffixes. Unknown identities are RoleUndefined.
func (a *ACL) Role(id domain.Identity) domain.Role {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, part := range id.Parts() {
		if role, ok := a.roles[part]; ok {
			return role
		}
	}

	return domain.RoleUndefined
}

// SetRole assigns role to id, replacing any previous assignment.
func (a *ACL) SetRole(id domain.Identity, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%d: %w", int(role), domain.ErrInvalidRole)
	}

	a.mu.Lock()
	a.roles[string(id)] = role
	store := a.store
	a.mu.Unlock()

	if store != nil {
		if err := store.Set(context.Background(), string(id), role); err != nil {
			log.Warn().Err(err).Str("identity", string(id)).
				Msg("failed to persist acl entry, kept in memory")
		}
	}

	return nil
}

// Remove deletes any mapping for id. Removing an absent identity is a
// no-op.
func (a *ACL) Remove(id domain.Identity) {
	a.mu.Lock()
	delete(a.roles, string(id))
	store := a.store
	a.mu.Unlock()

	if store != nil {
		if err := store.Delete(context.Background(), string(id)); err != nil {
			log.Warn().Err(err).Str("identity", string(id)).
				Msg("failed to delete persisted acl entry")
		}
	}
}

// Check reports whether id resolves, via suffix fallback, to one of the
// given roles.
func (a *ACL) Check(id domain.Identity, roles ...domain.Role) bool {
	got := a.Role(id)
	for _, r := range roles {
		if got == r {
			return true
		}
	}

	return false
}

// Count returns how many identities hold one of the given roles, or the
// total table size when no roles are given.
func (a *ACL) Count(roles ...domain.Role) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(roles) == 0 {
		return len(a.roles)
	}

	n := 0
	for _, have := range a.roles {
		for _, want := range roles {
			if have == want {
				n++
				break
			}
		}
	}

	return n
}

// MatchingSuffix returns the most specific suffix of id that carries a
// role assignment, so admin queries can explain how an identity
// resolved.
func (a *ACL) MatchingSuffix(id domain.Identity) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, part := range id.Parts() {
		if _, ok := a.roles[part]; ok {
			return part, true
		}
	}

	return "", false
}

// Summary renders a one-line census for the startup log.
func (a *ACL) Summary() string {
	counts := []struct {
		label string
		role  domain.Role
	}{
		{"owners", domain.RoleOwner},
		{"admins", domain.RoleAdmin},
		{"members", domain.RoleMember},
		{"banned", domain.RoleBanned},
	}

	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.label, a.Count(c.role)))
	}

	return strings.Join(parts, ", ")
}
