package device

import (
	"context"
	"sync"
)

// InMemRegistrationRepository implements RegistrationRepository with an
// append-only in-memory slice.
type InMemRegistrationRepository struct {
	registrations []Registration
	mu            sync.Mutex
}

// NewInMemRegistrationRepository creates an empty in-memory repository.
func NewInMemRegistrationRepository() *InMemRegistrationRepository {
	return &InMemRegistrationRepository{}
}

func (r *InMemRegistrationRepository) CreateRegistration(ctx context.Context, registration Registration) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, registration)
	return registration, nil
}

func (r *InMemRegistrationRepository) FindRegistrations(ctx context.Context) ([]Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations := make([]Registration, len(r.registrations))
	copy(registrations, r.registrations)
	return registrations, nil
}
