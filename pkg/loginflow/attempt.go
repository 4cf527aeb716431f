package loginflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/financialhub/login-core/pkg/directory"
	"github.com/financialhub/login-core/pkg/notification"
	"github.com/financialhub/login-core/pkg/totp"
)

// State of a login attempt.
type State string

const (
	StateAwaitingPrimary State = "awaiting_primary"
	StateChallengeIssued State = "challenge_issued"
	StateVerified        State = "verified"
	StateFailed          State = "failed"
)

// ErrAttemptNotFound is returned for an unknown or abandoned attempt id.
var ErrAttemptNotFound = errors.New("login attempt not found")

// LoginAttempt is the ephemeral per-browser-session flow state. It is created
// when the login form is submitted and destroyed when a session is issued or
// the flow is abandoned. The challenge secret is not stored here; it lives in
// the challenge store keyed by ChallengeID.
type LoginAttempt struct {
	ID            uuid.UUID                   `json:"id"`
	State         State                       `json:"state"`
	Identifier    string                      `json:"identifier"`
	Account       *directory.Account          `json:"account,omitempty"`
	MFAMethod     totp.DeliveryMethod         `json:"mfa_method"`
	ChallengeID   uuid.UUID                   `json:"challenge_id,omitempty"`
	QRDataURI     string                      `json:"qr,omitempty"`
	Delivery      notification.DeliveryResult `json:"delivery"`
	GatewayMethod string                      `json:"gateway_method,omitempty"`
	LastError     string                      `json:"last_error,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// AttemptStore holds in-flight login attempts.
type AttemptStore interface {
	Put(ctx context.Context, attempt *LoginAttempt) error
	Get(ctx context.Context, id uuid.UUID) (*LoginAttempt, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InMemAttemptStore implements AttemptStore with a mutex-guarded map.
type InMemAttemptStore struct {
	attempts map[uuid.UUID]*LoginAttempt
	mu       sync.Mutex
}

// NewInMemAttemptStore creates an empty attempt store.
func NewInMemAttemptStore() *InMemAttemptStore {
	return &InMemAttemptStore{
		attempts: make(map[uuid.UUID]*LoginAttempt),
	}
}

func (s *InMemAttemptStore) Put(ctx context.Context, attempt *LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *InMemAttemptStore) Get(ctx context.Context, id uuid.UUID) (*LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, exists := s.attempts[id]
	if !exists {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *InMemAttemptStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, id)
	return nil
}
