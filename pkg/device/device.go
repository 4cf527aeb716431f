package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registration is an append-only record of a trusted-device enrollment.
// Records are written once and never mutated or deleted here; retention and
// rotation are external concerns.
type Registration struct {
	ID        uuid.UUID `json:"id"`
	UserAgent string    `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
}

// RegistrationRepository defines the interface for registration storage.
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, registration Registration) (Registration, error)
	FindRegistrations(ctx context.Context) ([]Registration, error)
}
