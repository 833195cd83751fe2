package port

import (
	"context"

	"plugbot/internal/core/domain"
)

// ACLStore persists the ACL table. A bot without a configured store
// keeps the table in memory only and loses it on restart.
type ACLStore interface {
	Load(ctx context.Context) (map[string]domain.Role, error)
	Set(ctx context.Context, identity string, role domain.Role) error
	Delete(ctx context.Context, identity string) error
	Close() error
}
