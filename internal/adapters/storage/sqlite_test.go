package storage

import (
	"context"
	"path/filepath"
	"testing"

	"plugbot/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "acl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "boss@corp.com", domain.RoleOwner))
	require.NoError(t, s.Set(ctx, "corp.com", domain.RoleMember))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Role{
		"boss@corp.com": domain.RoleOwner,
		"corp.com":      domain.RoleMember,
	}, got)
}

func TestSetOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "bob@corp.com", domain.RoleMember))
	require.NoError(t, s.Set(ctx, "bob@corp.com", domain.RoleAdmin))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got["bob@corp.com"])
	assert.Len(t, got, 1)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "bob@corp.com", domain.RoleMember))
	require.NoError(t, s.Delete(ctx, "bob@corp.com"))
	require.NoError(t, s.Delete(ctx, "absent@corp.com"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acl.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "boss@corp.com", domain.RoleOwner))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, got["boss@corp.com"])
}

func TestLoadAfterCloseReportsUnavailable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
