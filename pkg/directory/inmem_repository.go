package directory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// InMemDirectoryRepository implements DirectoryRepository backed by a static
// account list. Passwords are kept separately from the Account records so
// they are never handed out with a resolved account.
type InMemDirectoryRepository struct {
	accounts  []Account
	passwords map[string]string
	mu        sync.RWMutex
}

// NewInMemDirectoryRepository creates a repository seeded with the given accounts.
func NewInMemDirectoryRepository(accounts []Account) *InMemDirectoryRepository {
	return &InMemDirectoryRepository{
		accounts:  accounts,
		passwords: make(map[string]string),
	}
}

// SetPassword stores the password for an account id. Seed data may carry
// either bcrypt hashes or plaintext.
func (r *InMemDirectoryRepository) SetPassword(id, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords[id] = password
}

// Resolve matches identifier case-sensitively against both id and email.
func (r *InMemDirectoryRepository) Resolve(ctx context.Context, identifier string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.ID == identifier || account.Email == identifier {
			return account, nil
		}
	}

	slog.Debug("Identifier not found in directory", "identifier", identifier)
	return Account{}, ErrAccountNotFound
}

// All returns a copy of the directory contents.
func (r *InMemDirectoryRepository) All(ctx context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]Account, len(r.accounts))
	copy(accounts, r.accounts)
	return accounts, nil
}

// VerifyPassword compares the submitted password against the stored one.
// Bcrypt hashes are verified with bcrypt; anything else falls back to a
// direct comparison since demo seed data stores plaintext.
func (r *InMemDirectoryRepository) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	r.mu.RLock()
	stored, ok := r.passwords[id]
	r.mu.RUnlock()

	if !ok {
		return false, ErrAccountNotFound
	}

	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
		if err != nil {
			return false, nil
		}
		return true, nil
	}

	return stored == password, nil
}

// DemoAccounts returns the seeded demo directory. The first two accounts are
// the designated demo subscribers that bypass the remote identity provider.
func DemoAccounts() []Account {
	lastLogin := time.Date(2025, time.March, 12, 9, 41, 0, 0, time.UTC)
	return []Account{
		{
			ID:        "26626656",
			FirstName: "Youness",
			LastName:  "Abach",
			Email:     "youness.abach@financialhub.com",
			Phone:     "0612345678",
			Role:      "user",
			Status:    "Active",
			LastLogin: lastLogin,
		},
		{
			ID:        "27727756",
			FirstName: "Claire",
			LastName:  "Moreau",
			Email:     "claire.moreau@financialhub.com",
			Phone:     "0623456789",
			Role:      "user",
			Status:    "Active",
			LastLogin: lastLogin,
		},
		{
			ID:        "31838867",
			FirstName: "Marc",
			LastName:  "Lefevre",
			Email:     "marc.lefevre@financialhub.com",
			Phone:     "0634567890",
			Role:      "admin",
			Status:    "Active",
			LastLogin: time.Time{},
		},
	}
}
