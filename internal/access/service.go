package access

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Service answers authorization questions against a Store. The owner set is
// loaded once by SeedOwners and never changes afterwards.
type Service struct {
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	owners map[int64]struct{}
}

// NewService creates an access service backed by store.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "access")),
		owners: map[int64]struct{}{},
	}
}

// SeedOwners writes the configured owner ids to the store and loads the
// resulting owner set into memory. It is meant to run once at startup.
func (s *Service) SeedOwners(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		added, err := s.store.Add(ctx, RoleOwner, id)
		if err != nil {
			return fmt.Errorf("seed owner %d: %w", id, err)
		}
		if added {
			s.logger.Info("owner seeded", slog.Int64("user_id", id))
		}
	}
	stored, err := s.store.List(ctx, RoleOwner)
	if err != nil {
		return fmt.Errorf("load owners: %w", err)
	}
	owners := make(map[int64]struct{}, len(stored))
	for _, id := range stored {
		owners[id] = struct{}{}
	}
	s.mu.Lock()
	s.owners = owners
	s.mu.Unlock()
	return nil
}

// IsOwner reports whether requesterID is an owner.
func (s *Service) IsOwner(requesterID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owners[requesterID]
	return ok
}

// IsAllowed reports whether requesterID may use the bot in conversationID:
// owners always may, otherwise the user or the conversation must be listed.
func (s *Service) IsAllowed(ctx context.Context, requesterID, conversationID int64) (bool, error) {
	if s.IsOwner(requesterID) {
		return true, nil
	}
	ok, err := s.store.Has(ctx, RoleAllowedUser, requesterID)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if ok {
		return true, nil
	}
	ok, err = s.store.Has(ctx, RoleAllowedConversation, conversationID)
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return ok, nil
}

// Grant adds requesterID to the allow-list. It returns false when the user
// was already present. Callers must check IsOwner for the issuer first.
func (s *Service) Grant(ctx context.Context, requesterID int64) (bool, error) {
	return s.store.Add(ctx, RoleAllowedUser, requesterID)
}

// Revoke removes requesterID from the allow-list and reports whether a row
// was removed.
func (s *Service) Revoke(ctx context.Context, requesterID int64) (bool, error) {
	return s.store.Remove(ctx, RoleAllowedUser, requesterID)
}

// AllowConversation lets every member of conversationID use the bot.
func (s *Service) AllowConversation(ctx context.Context, conversationID int64) (bool, error) {
	return s.store.Add(ctx, RoleAllowedConversation, conversationID)
}

// DisallowConversation undoes AllowConversation.
func (s *Service) DisallowConversation(ctx context.Context, conversationID int64) (bool, error) {
	return s.store.Remove(ctx, RoleAllowedConversation, conversationID)
}

// ListUsers returns the allowed user ids.
func (s *Service) ListUsers(ctx context.Context) ([]int64, error) {
	return s.store.List(ctx, RoleAllowedUser)
}

// ListConversations returns the allowed conversation ids.
func (s *Service) ListConversations(ctx context.Context) ([]int64, error) {
	return s.store.List(ctx, RoleAllowedConversation)
}

// Owners returns the loaded owner ids.
func (s *Service) Owners() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := lo.Keys(s.owners)
	slices.Sort(ids)
	return ids
}
