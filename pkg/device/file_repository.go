package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRegistrationRepository implements RegistrationRepository over a JSON
// file holding an array of records, matching the original browsers.json
// layout.
type FileRegistrationRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRegistrationRepository creates a repository writing to path. The
// parent directory is created if missing.
func NewFileRegistrationRepository(path string) (*FileRegistrationRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registration store directory: %w", err)
	}
	return &FileRegistrationRepository{path: path}, nil
}

func (r *FileRegistrationRepository) load() ([]Registration, error) {
	content, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Registration{}, nil
		}
		return nil, fmt.Errorf("failed to read registration store: %w", err)
	}

	var registrations []Registration
	if err := json.Unmarshal(content, &registrations); err != nil {
		// Corrupt store starts over rather than blocking registration.
		return []Registration{}, nil
	}
	return registrations, nil
}

func (r *FileRegistrationRepository) save(registrations []Registration) error {
	content, err := json.MarshalIndent(registrations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registration store: %w", err)
	}
	if err := os.WriteFile(r.path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write registration store: %w", err)
	}
	return nil
}

func (r *FileRegistrationRepository) CreateRegistration(ctx context.Context, registration Registration) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return Registration{}, err
	}

	registrations = append(registrations, registration)
	if err := r.save(registrations); err != nil {
		return Registration{}, err
	}
	return registration, nil
}

func (r *FileRegistrationRepository) FindRegistrations(ctx context.Context) ([]Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}
