package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/identity/internal/models"
)

// MemoryAccountStore is an in-memory account store. It backs the local
// development mode and the unit tests; the semantics mirror the postgres
// repository, including the (identifier, role) uniqueness rule.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account // keyed by account ID
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]*models.Account),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

// FindByIdentifier returns every account for an identifier, ordered by
// role for a stable result.
func (s *MemoryAccountStore) FindByIdentifier(ctx context.Context, identifier string) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Account, 0)
	for _, account := range s.accounts {
		if account.Identifier == identifier {
			matches = append(matches, cloneAccount(account))
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Role < matches[j].Role })
	return matches, nil
}

func (s *MemoryAccountStore) FindByIdentifierAndRole(ctx context.Context, identifier string, role models.Role) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.Identifier == identifier && account.Role == role {
			return cloneAccount(account), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Identifier == account.Identifier && existing.Role == account.Role {
			return nil, models.ErrConflict
		}
	}

	now := time.Now()
	stored := cloneAccount(account)
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.accounts[stored.ID] = stored
	return cloneAccount(stored), nil
}

func (s *MemoryAccountStore) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	if account.CredentialHash != "" {
		existing.CredentialHash = account.CredentialHash
	}
	if account.DisplayName != "" {
		existing.DisplayName = account.DisplayName
	}
	existing.AdminProvisioned = account.AdminProvisioned
	existing.UpdatedAt = time.Now()
	return cloneAccount(existing), nil
}

func (s *MemoryAccountStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}
