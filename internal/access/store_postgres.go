package access

import (
	"context"
	"fmt"

	"github.com/memohai/doubtsolver/internal/db/sqlc"
)

// PostgresStore keeps the allow-list in Postgres.
type PostgresStore struct {
	queries *sqlc.Queries
}

// NewPostgresStore wraps generated queries as a Store.
func NewPostgresStore(queries *sqlc.Queries) *PostgresStore {
	return &PostgresStore{queries: queries}
}

func (s *PostgresStore) Add(ctx context.Context, role Role, id int64) (bool, error) {
	var (
		n   int64
		err error
	)
	switch role {
	case RoleOwner:
		n, err = s.queries.InsertOwner(ctx, id)
	case RoleAllowedUser:
		n, err = s.queries.InsertAllowedUser(ctx, id)
	case RoleAllowedConversation:
		n, err = s.queries.InsertAllowedConversation(ctx, id)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) Remove(ctx context.Context, role Role, id int64) (bool, error) {
	var (
		n   int64
		err error
	)
	switch role {
	case RoleAllowedUser:
		n, err = s.queries.DeleteAllowedUser(ctx, id)
	case RoleAllowedConversation:
		n, err = s.queries.DeleteAllowedConversation(ctx, id)
	default:
		// Owners are only ever seeded.
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) Has(ctx context.Context, role Role, id int64) (bool, error) {
	switch role {
	case RoleAllowedUser:
		return s.queries.AllowedUserExists(ctx, id)
	case RoleAllowedConversation:
		return s.queries.AllowedConversationExists(ctx, id)
	case RoleOwner:
		owners, err := s.queries.ListOwners(ctx)
		if err != nil {
			return false, err
		}
		for _, owner := range owners {
			if owner == id {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
}

func (s *PostgresStore) List(ctx context.Context, role Role) ([]int64, error) {
	switch role {
	case RoleOwner:
		return s.queries.ListOwners(ctx)
	case RoleAllowedUser:
		return s.queries.ListAllowedUsers(ctx)
	case RoleAllowedConversation:
		return s.queries.ListAllowedConversations(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
}
