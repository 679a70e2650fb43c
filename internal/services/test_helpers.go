package services

import (
	"context"

	"github.com/ridelink/identity/internal/models"
)

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	FindByIdentifierFunc        func(ctx context.Context, identifier string) ([]*models.Account, error)
	FindByIdentifierAndRoleFunc func(ctx context.Context, identifier string, role models.Role) (*models.Account, error)
	CreateFunc                  func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateFunc                  func(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	DeleteFunc                  func(ctx context.Context, id string) error

	FindByIdentifierCalls int
	CreateCalls           int
}

func (m *MockAccountStore) FindByIdentifier(ctx context.Context, identifier string) ([]*models.Account, error) {
	m.FindByIdentifierCalls++
	if m.FindByIdentifierFunc != nil {
		return m.FindByIdentifierFunc(ctx, identifier)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountStore) FindByIdentifierAndRole(ctx context.Context, identifier string, role models.Role) (*models.Account, error) {
	if m.FindByIdentifierAndRoleFunc != nil {
		return m.FindByIdentifierAndRoleFunc(ctx, identifier, role)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	m.CreateCalls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountStore) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockVerifier implements CredentialVerifier for testing. By default a
// secret matches a hash of the form "hashed:" + secret.
type MockVerifier struct {
	VerifyFunc func(credentialHash, secret string) bool
	Calls      int
}

func (m *MockVerifier) Verify(credentialHash, secret string) bool {
	m.Calls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(credentialHash, secret)
	}
	return credentialHash == "hashed:"+secret
}

// NewTestAccount builds an account for tests
func NewTestAccount(id, identifier string, role models.Role, provisioned bool) *models.Account {
	return &models.Account{
		ID:               id,
		Identifier:       identifier,
		Role:             role,
		CredentialHash:   "hashed:pw",
		DisplayName:      "Test Account",
		AdminProvisioned: provisioned,
	}
}
