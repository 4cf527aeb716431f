package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RegistrationService records trusted-device registrations.
type RegistrationService struct {
	repository RegistrationRepository
}

// NewRegistrationService creates a service over the given repository.
func NewRegistrationService(repository RegistrationRepository) *RegistrationService {
	return &RegistrationService{repository: repository}
}

// RegisterDevice appends one registration record for the client.
func (s *RegistrationService) RegisterDevice(ctx context.Context, userAgent, ip string) (Registration, error) {
	if userAgent == "" {
		return Registration{}, fmt.Errorf("user agent is required")
	}
	if ip == "" {
		ip = "unknown"
	}

	registration := Registration{
		ID:        uuid.New(),
		UserAgent: userAgent,
		Timestamp: time.Now().UTC(),
		IP:        ip,
	}

	created, err := s.repository.CreateRegistration(ctx, registration)
	if err != nil {
		slog.Error("Failed to create device registration", "userAgent", userAgent, "err", err)
		return Registration{}, fmt.Errorf("failed to create registration: %w", err)
	}

	slog.Info("Device registered", "registrationId", created.ID, "ip", created.IP)
	return created, nil
}

// FindRegistrations returns all registrations, oldest first.
func (s *RegistrationService) FindRegistrations(ctx context.Context) ([]Registration, error) {
	registrations, err := s.repository.FindRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find registrations: %w", err)
	}
	return registrations, nil
}
