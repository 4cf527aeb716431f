package directory

import (
	"context"
	"errors"
	"time"
)

// Account is an identity record owned by the external user directory.
// It is read-only for the duration of a login attempt.
type Account struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	LastLogin time.Time `json:"lastLogin"`
}

// DisplayName returns the name used in notification templates.
func (a Account) DisplayName() string {
	if a.FirstName != "" {
		return a.FirstName
	}
	return a.Email
}

// ErrAccountNotFound is returned when an identifier matches neither an
// account id nor an email in the directory.
var ErrAccountNotFound = errors.New("account not found")

// DirectoryRepository abstracts the user directory so a persistent store
// can replace the seeded in-memory list without touching callers.
type DirectoryRepository interface {
	// Resolve matches identifier case-sensitively against both the id and
	// email fields. First match wins.
	Resolve(ctx context.Context, identifier string) (Account, error)

	// All returns every account in the directory.
	All(ctx context.Context) ([]Account, error)

	// VerifyPassword checks a password for the account with the given id.
	VerifyPassword(ctx context.Context, id, password string) (bool, error)
}
