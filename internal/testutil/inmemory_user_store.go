package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vexa-ai/billing/internal/domain/user"
	ierr "github.com/vexa-ai/billing/internal/errors"
)

// InMemoryUserStore is an in-memory implementation of user.Repository for
// testing. Patches replace the tracked entitlement fields wholesale, matching
// the contract of the real admin store.
type InMemoryUserStore struct {
	mu sync.RWMutex

	users   map[string]*user.User // keyed by email
	patches map[int64]*user.EntitlementPatch
	nextID  int64

	// injectable failures
	UpsertErr error
	PatchErr  error

	// PatchCount counts Patch calls for idempotence assertions
	PatchCount int
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[string]*user.User),
		patches: make(map[int64]*user.EntitlementPatch),
	}
}

func (s *InMemoryUserStore) Upsert(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	s.nextID++
	u := &user.User{ID: s.nextID, Email: email}
	s.users[email] = u
	return u, nil
}

func (s *InMemoryUserStore) Patch(ctx context.Context, userID int64, patch *user.EntitlementPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PatchErr != nil {
		return s.PatchErr
	}
	for _, u := range s.users {
		if u.ID == userID {
			u.MaxConcurrentBots = patch.MaxConcurrentBots
			s.patches[userID] = patch
			s.PatchCount++
			return nil
		}
	}
	return ierr.NewError(fmt.Sprintf("user %d not found", userID)).Mark(ierr.ErrNotFound)
}

func (s *InMemoryUserStore) List(ctx context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *InMemoryUserStore) CreateToken(ctx context.Context, userID int64) (string, error) {
	return fmt.Sprintf("tok_test_%d", userID), nil
}

// GetUser returns the stored user record for email, or nil
func (s *InMemoryUserStore) GetUser(email string) *user.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[email]
}

// LastPatch returns the last entitlement patch applied to the user, or nil
func (s *InMemoryUserStore) LastPatch(userID int64) *user.EntitlementPatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches[userID]
}
