package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDevice(t *testing.T) {
	service := NewRegistrationService(NewInMemRegistrationRepository())
	ctx := context.Background()

	registration, err := service.RegisterDevice(ctx, "Mozilla/5.0", "10.0.0.1")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, registration.ID)
	assert.Equal(t, "Mozilla/5.0", registration.UserAgent)
	assert.Equal(t, "10.0.0.1", registration.IP)
	assert.False(t, registration.Timestamp.IsZero())

	found, err := service.FindRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, registration.ID, found[0].ID)
}

func TestRegisterDeviceRequiresUserAgent(t *testing.T) {
	service := NewRegistrationService(NewInMemRegistrationRepository())

	_, err := service.RegisterDevice(context.Background(), "", "10.0.0.1")
	assert.Error(t, err)
}

func TestRegisterDeviceDefaultsIP(t *testing.T) {
	service := NewRegistrationService(NewInMemRegistrationRepository())

	registration, err := service.RegisterDevice(context.Background(), "Mozilla/5.0", "")
	require.NoError(t, err)
	assert.Equal(t, "unknown", registration.IP)
}

func TestFileRepositoryPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsers.json")

	repo, err := NewFileRegistrationRepository(path)
	require.NoError(t, err)
	service := NewRegistrationService(repo)

	first, err := service.RegisterDevice(context.Background(), "Mozilla/5.0", "10.0.0.1")
	require.NoError(t, err)
	_, err = service.RegisterDevice(context.Background(), "curl/8.0", "10.0.0.2")
	require.NoError(t, err)

	reopened, err := NewFileRegistrationRepository(path)
	require.NoError(t, err)

	found, err := reopened.FindRegistrations(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, first.ID, found[0].ID)
	assert.Equal(t, "Mozilla/5.0", found[0].UserAgent)
}

func TestFileRepositoryToleratesCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsers.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	repo, err := NewFileRegistrationRepository(path)
	require.NoError(t, err)

	found, err := repo.FindRegistrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)

	// New registrations start a fresh store.
	_, err = repo.CreateRegistration(context.Background(), Registration{ID: uuid.New(), UserAgent: "Mozilla/5.0", IP: "10.0.0.1"})
	require.NoError(t, err)

	found, err = repo.FindRegistrations(context.Background())
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
