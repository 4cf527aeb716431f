package loginflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/financialhub/login-core/pkg/device"
	"github.com/financialhub/login-core/pkg/directory"
	"github.com/financialhub/login-core/pkg/idp"
	"github.com/financialhub/login-core/pkg/notification"
	"github.com/financialhub/login-core/pkg/session"
	"github.com/financialhub/login-core/pkg/totp"
)

// IdentityGateway is the slice of the remote provider surface the
// orchestrator needs.
type IdentityGateway interface {
	PasswordGrant(ctx context.Context, username, password string) (*idp.TokenResponse, error)
	VerifyIdentityExists(ctx context.Context, username string) (*idp.Verification, error)
}

// PasscodeDispatcher delivers the current code out of band.
type PasscodeDispatcher interface {
	SendPasscode(ctx context.Context, toAddress, code, displayName string) (notification.DeliveryResult, error)
}

// Service sequences the end-to-end login flow:
// resolve identity -> demo or remote path -> issue challenge -> verify ->
// issue session. One attempt per browser session; no attempt is mutated by
// more than one caller.
type Service struct {
	directory  directory.DirectoryRepository
	gateway    IdentityGateway
	challenges *totp.Service
	dispatcher PasscodeDispatcher
	sessions   *session.Service
	attempts   AttemptStore

	demoAccounts         map[string]bool
	deliveryFailureFatal bool
}

// Option configures a Service.
type Option func(*Service)

// WithDemoAccounts designates directory ids that short-circuit the remote
// provider entirely.
func WithDemoAccounts(ids ...string) Option {
	return func(s *Service) {
		s.demoAccounts = make(map[string]bool, len(ids))
		for _, id := range ids {
			s.demoAccounts[id] = true
		}
	}
}

// WithDeliveryFailureFatal makes a failed passcode dispatch abort challenge
// issuance. Off by default: the authenticator-app channel stays valid even
// when email fails.
func WithDeliveryFailureFatal(fatal bool) Option {
	return func(s *Service) {
		s.deliveryFailureFatal = fatal
	}
}

// WithAttemptStore replaces the default in-memory attempt store.
func WithAttemptStore(store AttemptStore) Option {
	return func(s *Service) {
		s.attempts = store
	}
}

// NewService creates the login orchestrator.
func NewService(
	directoryRepo directory.DirectoryRepository,
	gateway IdentityGateway,
	challenges *totp.Service,
	dispatcher PasscodeDispatcher,
	sessions *session.Service,
	opts ...Option,
) *Service {
	service := &Service{
		directory:  directoryRepo,
		gateway:    gateway,
		challenges: challenges,
		dispatcher: dispatcher,
		sessions:   sessions,
		attempts:   NewInMemAttemptStore(),
		demoAccounts: map[string]bool{
			"26626656": true,
			"27727756": true,
		},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SubmitPrimaryParams carries the login form submission.
type SubmitPrimaryParams struct {
	Identifier string
	Password   string
	Method     totp.DeliveryMethod
}

// SubmitPrimary handles the AwaitingPrimary transition. A designated demo
// account short-circuits to challenge issuance without touching the remote
// gateway; everything else is delegated to it.
func (s *Service) SubmitPrimary(ctx context.Context, params SubmitPrimaryParams) (*LoginAttempt, error) {
	now := time.Now().UTC()
	method := params.Method
	if method == "" {
		method = totp.MethodApp
	}

	attempt := &LoginAttempt{
		ID:         uuid.New(),
		State:      StateAwaitingPrimary,
		Identifier: params.Identifier,
		MFAMethod:  method,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}

	account, err := s.directory.Resolve(ctx, params.Identifier)
	if err == nil {
		attempt.Account = &account
	} else if !errors.Is(err, directory.ErrAccountNotFound) {
		return s.fail(ctx, attempt, err)
	}

	if attempt.Account != nil && s.demoAccounts[attempt.Account.ID] {
		if params.Password != "" {
			ok, err := s.directory.VerifyPassword(ctx, attempt.Account.ID, params.Password)
			if err != nil || !ok {
				return s.fail(ctx, attempt, idp.ErrInvalidCredentials)
			}
		}
		slog.Info("Demo account login, skipping remote provider", "accountId", attempt.Account.ID)
		attempt.GatewayMethod = "demo_local"
		return s.issueChallenge(ctx, attempt)
	}

	username := params.Identifier
	if attempt.Account != nil {
		username = attempt.Account.Email
	}

	if params.Password != "" {
		if _, err := s.gateway.PasswordGrant(ctx, username, params.Password); err != nil {
			return s.fail(ctx, attempt, err)
		}
		attempt.GatewayMethod = "ropc"
	} else {
		verification, err := s.gateway.VerifyIdentityExists(ctx, username)
		if err != nil {
			return s.fail(ctx, attempt, err)
		}
		attempt.GatewayMethod = verification.Method
	}

	return s.issueChallenge(ctx, attempt)
}

// issueChallenge performs the ChallengeIssued transition. It does not return
// before the secret and QR exist; passcode dispatch is fire-and-forget
// unless the delivery policy says otherwise.
func (s *Service) issueChallenge(ctx context.Context, attempt *LoginAttempt) (*LoginAttempt, error) {
	label := attempt.Identifier
	if attempt.Account != nil {
		label = attempt.Account.ID
	}

	challenge, err := s.challenges.IssueChallenge(ctx, label, attempt.MFAMethod)
	if err != nil {
		return s.fail(ctx, attempt, err)
	}

	attempt.ChallengeID = challenge.ID
	attempt.QRDataURI = challenge.QRDataURI
	attempt.State = StateChallengeIssued
	attempt.UpdatedAt = time.Now().UTC()
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}

	toAddress := attempt.Identifier
	displayName := ""
	if attempt.Account != nil {
		toAddress = attempt.Account.Email
		displayName = attempt.Account.DisplayName()
	}

	if s.deliveryFailureFatal {
		result, err := s.dispatcher.SendPasscode(ctx, toAddress, challenge.CurrentCode, displayName)
		attempt.Delivery = result
		if err != nil {
			_ = s.challenges.DiscardChallenge(ctx, challenge.ID)
			return s.fail(ctx, attempt, err)
		}
		return attempt, nil
	}

	go func(challengeID uuid.UUID, code string) {
		result, err := s.dispatcher.SendPasscode(context.Background(), toAddress, code, displayName)
		if err != nil {
			slog.Warn("Passcode delivery failed, authenticator channel remains valid",
				"attemptId", attempt.ID, "err", err)
		}
		if stored, getErr := s.attempts.Get(context.Background(), attempt.ID); getErr == nil {
			stored.Delivery = result
			_ = s.attempts.Put(context.Background(), stored)
		}
	}(challenge.ID, challenge.CurrentCode)

	return attempt, nil
}

// SubmitCode handles the ChallengeIssued transition. Success issues an
// ephemeral session; failure returns the attempt to AwaitingPrimary with
// cleared input.
func (s *Service) SubmitCode(ctx context.Context, attemptID uuid.UUID, code string) (*LoginAttempt, *session.Session, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.State != StateChallengeIssued {
		return nil, nil, fmt.Errorf("attempt is not awaiting verification")
	}

	valid, err := s.challenges.VerifyChallenge(ctx, attempt.ChallengeID, code)
	if err != nil && !errors.Is(err, totp.ErrChallengeMalformed) {
		return s.failVerification(ctx, attempt, err)
	}
	if !valid {
		if err == nil {
			err = fmt.Errorf("verification code rejected")
		}
		return s.failVerification(ctx, attempt, err)
	}

	subject := attempt.Identifier
	if attempt.Account != nil {
		subject = attempt.Account.ID
	}
	sess, err := s.sessions.IssueEphemeralSession(ctx, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue session: %w", err)
	}

	attempt.State = StateVerified
	attempt.UpdatedAt = time.Now().UTC()
	// Attempt state is discarded once the session exists.
	_ = s.attempts.Delete(ctx, attempt.ID)

	slog.Info("Login verified", "attemptId", attempt.ID, "subject", subject)
	return attempt, &sess, nil
}

// failVerification records a failed code entry and re-enters AwaitingPrimary.
// The in-flight secret is discarded; the caller clears the code input.
func (s *Service) failVerification(ctx context.Context, attempt *LoginAttempt, cause error) (*LoginAttempt, *session.Session, error) {
	_ = s.challenges.DiscardChallenge(ctx, attempt.ChallengeID)
	attempt.State = StateAwaitingPrimary
	attempt.ChallengeID = uuid.Nil
	attempt.QRDataURI = ""
	attempt.LastError = "verification failed"
	attempt.UpdatedAt = time.Now().UTC()
	_ = s.attempts.Put(ctx, attempt)

	slog.Warn("Challenge verification failed", "attemptId", attempt.ID, "err", cause)
	return attempt, nil, cause
}

// Back abandons the in-flight challenge and returns to AwaitingPrimary. The
// discarded secret is never reused; the next attempt generates a fresh one.
func (s *Service) Back(ctx context.Context, attemptID uuid.UUID) (*LoginAttempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.ChallengeID != uuid.Nil {
		_ = s.challenges.DiscardChallenge(ctx, attempt.ChallengeID)
	}
	attempt.State = StateAwaitingPrimary
	attempt.ChallengeID = uuid.Nil
	attempt.QRDataURI = ""
	attempt.UpdatedAt = time.Now().UTC()
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}
	return attempt, nil
}

// Attempt returns the current state of an in-flight attempt.
func (s *Service) Attempt(ctx context.Context, attemptID uuid.UUID) (*LoginAttempt, error) {
	return s.attempts.Get(ctx, attemptID)
}

// SubmitPasswordlessIdentification verifies that the identity exists at the
// remote provider (no password, no second factor) and issues a direct
// session. Lower assurance than the challenge path; mirrors the provider
// identification flow of the original surface.
func (s *Service) SubmitPasswordlessIdentification(ctx context.Context, identifier string) (*session.Session, error) {
	username := identifier
	subject := identifier
	if account, err := s.directory.Resolve(ctx, identifier); err == nil {
		username = account.Email
		subject = account.ID
	}

	verification, err := s.gateway.VerifyIdentityExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !verification.Verified {
		return nil, idp.ErrIdentityNotFound
	}

	sess, err := s.sessions.IssueDirectSession(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to issue direct session: %w", err)
	}
	return &sess, nil
}

// RegisterTrustedDevice resolves the identity and issues a long-lived
// trusted-device session plus a registration record, bypassing the second
// factor entirely. A deliberate trade-off, not a flaw to fix silently.
func (s *Service) RegisterTrustedDevice(ctx context.Context, identifier, userAgent, ip string) (*session.Session, device.Registration, error) {
	account, err := s.directory.Resolve(ctx, identifier)
	if err != nil {
		return nil, device.Registration{}, err
	}

	sess, registration, err := s.sessions.IssueTrustedSession(ctx, account.ID, userAgent, ip)
	if err != nil {
		return nil, device.Registration{}, err
	}

	slog.Info("Trusted device registered", "accountId", account.ID, "registrationId", registration.ID)
	return &sess, registration, nil
}

// fail marks the attempt Failed and re-enters AwaitingPrimary for the next
// submission.
func (s *Service) fail(ctx context.Context, attempt *LoginAttempt, cause error) (*LoginAttempt, error) {
	attempt.State = StateFailed
	attempt.LastError = cause.Error()
	attempt.UpdatedAt = time.Now().UTC()
	_ = s.attempts.Put(ctx, attempt)

	slog.Warn("Login attempt failed", "attemptId", attempt.ID, "identifier", attempt.Identifier, "err", cause)
	return attempt, cause
}
