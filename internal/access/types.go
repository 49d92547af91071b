package access

import (
	"context"
	"errors"
)

// Role classifies an identity stored in the allow-list.
type Role string

const (
	RoleOwner               Role = "owner"
	RoleAllowedUser         Role = "allowed_user"
	RoleAllowedConversation Role = "allowed_conversation"
)

// ErrUnknownRole is returned by stores for a Role outside the constants above.
var ErrUnknownRole = errors.New("unknown access role")

// Store persists the three allow-list key sets. Add reports whether the id
// was newly inserted; Remove reports whether a row was deleted.
type Store interface {
	Add(ctx context.Context, role Role, id int64) (bool, error)
	Remove(ctx context.Context, role Role, id int64) (bool, error)
	Has(ctx context.Context, role Role, id int64) (bool, error)
	List(ctx context.Context, role Role) ([]int64, error)
}
