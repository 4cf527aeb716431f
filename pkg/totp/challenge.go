package totp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryMethod is the channel a challenge code is presented through.
type DeliveryMethod string

const (
	MethodApp   DeliveryMethod = "app"
	MethodSMS   DeliveryMethod = "sms"
	MethodEmail DeliveryMethod = "email"
)

var (
	// ErrChallengeExpired indicates the per-attempt secret is no longer held
	// server-side.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrChallengeMalformed indicates the submitted input is not a six-digit code.
	ErrChallengeMalformed = errors.New("challenge code malformed")
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Challenge is the per-attempt second-factor state. The secret lives only in
// this record, keyed by an opaque attempt id; the client sees it solely
// inside the enrollment URI.
type Challenge struct {
	ID            uuid.UUID      `json:"id"`
	Secret        string         `json:"-"`
	Method        DeliveryMethod `json:"method"`
	AccountLabel  string         `json:"account_label"`
	EnrollmentURI string         `json:"-"`
	QRDataURI     string         `json:"qr"`
	CurrentCode   string         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// ChallengeStore holds in-flight challenges for the duration of one login
// attempt.
type ChallengeStore interface {
	Put(ctx context.Context, challenge *Challenge) error
	Get(ctx context.Context, id uuid.UUID) (*Challenge, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InMemChallengeStore implements ChallengeStore with a mutex-guarded map.
type InMemChallengeStore struct {
	challenges map[uuid.UUID]*Challenge
	mu         sync.Mutex
}

// NewInMemChallengeStore creates an empty in-memory challenge store.
func NewInMemChallengeStore() *InMemChallengeStore {
	return &InMemChallengeStore{
		challenges: make(map[uuid.UUID]*Challenge),
	}
}

func (s *InMemChallengeStore) Put(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ID] = challenge
	return nil
}

func (s *InMemChallengeStore) Get(ctx context.Context, id uuid.UUID) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, exists := s.challenges[id]
	if !exists {
		return nil, ErrChallengeExpired
	}
	if time.Now().UTC().After(challenge.ExpiresAt) {
		delete(s.challenges, id)
		return nil, ErrChallengeExpired
	}
	return challenge, nil
}

func (s *InMemChallengeStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, id)
	return nil
}

// Service issues and verifies per-attempt TOTP challenges.
type Service struct {
	store        ChallengeStore
	challengeTTL time.Duration
	smsDemoCode  string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithChallengeTTL sets how long an unanswered challenge stays valid.
func WithChallengeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.challengeTTL = ttl
	}
}

// WithSMSDemoCode enables the fixed demo passcode for simulated SMS delivery.
// This is a test/demo affordance, not a production security boundary, and is
// only honored when the challenge method is sms.
func WithSMSDemoCode(code string) ServiceOption {
	return func(s *Service) {
		s.smsDemoCode = code
	}
}

// NewService creates a challenge service backed by the given store.
func NewService(store ChallengeStore, opts ...ServiceOption) *Service {
	service := &Service{
		store:        store,
		challengeTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// IssueChallenge generates a fresh secret, derives the enrollment URI,
// renders the QR image and computes the code currently valid. A stale secret
// is never reused across attempts; each call produces new state.
func (s *Service) IssueChallenge(ctx context.Context, accountLabel string, method DeliveryMethod) (*Challenge, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge secret: %w", err)
	}

	enrollmentURI := EnrollmentURI(secret, accountLabel, Issuer)
	qr, err := RenderQR(enrollmentURI)
	if err != nil {
		return nil, fmt.Errorf("failed to render challenge qr: %w", err)
	}

	code, err := CurrentCode(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge code: %w", err)
	}

	now := time.Now().UTC()
	challenge := &Challenge{
		ID:            uuid.New(),
		Secret:        secret,
		Method:        method,
		AccountLabel:  accountLabel,
		EnrollmentURI: enrollmentURI,
		QRDataURI:     qr,
		CurrentCode:   code,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.challengeTTL),
	}

	if err := s.store.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	slog.Info("Challenge issued", "challengeId", challenge.ID, "method", method, "account", accountLabel)
	return challenge, nil
}

// VerifyChallenge checks a submitted code against the stored challenge. The
// challenge is consumed on success.
func (s *Service) VerifyChallenge(ctx context.Context, id uuid.UUID, submittedCode string) (bool, error) {
	if !codePattern.MatchString(submittedCode) {
		return false, ErrChallengeMalformed
	}

	challenge, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	valid := Verify(submittedCode, challenge.Secret)

	if !valid && challenge.Method == MethodSMS && s.smsDemoCode != "" && submittedCode == s.smsDemoCode {
		slog.Warn("Accepting fixed demo passcode for simulated sms", "challengeId", id)
		valid = true
	}

	if valid {
		if err := s.store.Delete(ctx, id); err != nil {
			slog.Warn("Failed to delete verified challenge", "challengeId", id, "err", err)
		}
	}
	return valid, nil
}

// DiscardChallenge drops an in-flight challenge, e.g. when the user navigates
// back. The next attempt must generate a fresh secret.
func (s *Service) DiscardChallenge(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}
