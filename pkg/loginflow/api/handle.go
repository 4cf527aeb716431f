package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/financialhub/login-core/pkg/idp"
	"github.com/financialhub/login-core/pkg/loginflow"
	"github.com/financialhub/login-core/pkg/ratelimit"
	"github.com/financialhub/login-core/pkg/session"
	"github.com/financialhub/login-core/pkg/totp"
)

// callbackSessionTTL is the lifetime of the cookie written after an
// authorization-code exchange.
const callbackSessionTTL = 7 * 24 * time.Hour

// Handle exposes the login flow over HTTP.
type Handle struct {
	flows    *loginflow.Service
	sessions *session.Service
	gateway  *idp.Service
	limiter  *ratelimit.Limiter
}

// Option configures a Handle.
type Option func(*Handle)

// WithFlowService sets the login orchestrator for the handle.
func WithFlowService(service *loginflow.Service) Option {
	return func(h *Handle) {
		h.flows = service
	}
}

// WithSessionService sets the session issuer for the handle.
func WithSessionService(service *session.Service) Option {
	return func(h *Handle) {
		h.sessions = service
	}
}

// WithGateway sets the remote provider client used by the
// authorization-code callback.
func WithGateway(service *idp.Service) Option {
	return func(h *Handle) {
		h.gateway = service
	}
}

// WithAttemptLimiter sets the attempt limiter whose budget is restored for
// the client after a successful verification.
func WithAttemptLimiter(limiter *ratelimit.Limiter) Option {
	return func(h *Handle) {
		h.limiter = limiter
	}
}

// NewHandle creates a new login flow handler.
func NewHandle(opts ...Option) *Handle {
	h := &Handle{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the login flow routes.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.PostLogin)
	r.Post("/verify", h.PostVerify)
	r.Post("/back", h.PostBack)
	r.Post("/identify", h.PostIdentify)
	r.Post("/register-browser", h.PostRegisterBrowser)
	r.Post("/logout", h.PostLogout)
	r.Get("/attempt/{id}", h.GetAttempt)
	r.Get("/auth/authorize", h.GetAuthorize)
	r.Get("/auth/callback", h.GetCallback)
}

// PostLogin handles the primary login form submission and, on success,
// returns the issued challenge.
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	data := LoginRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, "Unable to parse request body")
		return
	}
	if data.Username == "" {
		renderError(w, r, http.StatusBadRequest, "Username is required")
		return
	}

	attempt, err := h.flows.SubmitPrimary(r.Context(), loginflow.SubmitPrimaryParams{
		Identifier: data.Username,
		Password:   data.Password,
		Method:     totp.DeliveryMethod(data.Method),
	})
	if err != nil {
		slog.Error("Login failed", "username", data.Username, "err", err)
		renderError(w, r, statusForError(err), messageForError(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, challengeResponse(attempt))
}

// PostVerify submits the six-digit code. Success writes the session cookie.
func (h *Handle) PostVerify(w http.ResponseWriter, r *http.Request) {
	data := VerifyRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, "Unable to parse request body")
		return
	}
	attemptID, err := uuid.Parse(data.AttemptID)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid attempt id")
		return
	}

	attempt, sess, err := h.flows.SubmitCode(r.Context(), attemptID, data.Code)
	if err != nil {
		if errors.Is(err, loginflow.ErrAttemptNotFound) {
			renderError(w, r, http.StatusNotFound, "Login attempt not found")
			return
		}
		slog.Warn("Verification rejected", "attemptId", data.AttemptID, "err", err)
		renderError(w, r, http.StatusUnauthorized, "Verification failed")
		return
	}

	if err := h.sessions.WriteCookie(w, *sess); err != nil {
		slog.Error("Failed to write session cookie", "err", err)
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if h.limiter != nil {
		h.limiter.Reset(ratelimit.ClientKey(r))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"state":      string(attempt.State),
		"expires_at": sess.ExpiresAt,
	})
}

// PostBack abandons the in-flight challenge and returns to the login form.
func (h *Handle) PostBack(w http.ResponseWriter, r *http.Request) {
	data := BackRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, "Unable to parse request body")
		return
	}
	attemptID, err := uuid.Parse(data.AttemptID)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid attempt id")
		return
	}

	attempt, err := h.flows.Back(r.Context(), attemptID)
	if err != nil {
		renderError(w, r, http.StatusNotFound, "Login attempt not found")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{"state": string(attempt.State)})
}

// PostIdentify runs passwordless identification against the remote provider
// and writes a direct session cookie on success.
func (h *Handle) PostIdentify(w http.ResponseWriter, r *http.Request) {
	data := LoginRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, "Unable to parse request body")
		return
	}
	if data.Username == "" {
		renderError(w, r, http.StatusBadRequest, "Username is required")
		return
	}

	sess, err := h.flows.SubmitPasswordlessIdentification(r.Context(), data.Username)
	if err != nil {
		slog.Warn("Passwordless identification failed", "username", data.Username, "err", err)
		renderError(w, r, statusForError(err), messageForError(err))
		return
	}

	if err := h.sessions.WriteCookie(w, *sess); err != nil {
		slog.Error("Failed to write session cookie", "err", err)
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{"expires_at": sess.ExpiresAt})
}

// PostRegisterBrowser enrolls the calling browser as a trusted device and
// writes the long-lived session cookie plus the locale preference.
func (h *Handle) PostRegisterBrowser(w http.ResponseWriter, r *http.Request) {
	data := RegisterBrowserRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, "Unable to parse request body")
		return
	}
	if data.Username == "" {
		renderError(w, r, http.StatusBadRequest, "Username is required")
		return
	}

	userAgent := r.UserAgent()
	if userAgent == "" {
		renderError(w, r, http.StatusBadRequest, "User agent is required")
		return
	}

	sess, registration, err := h.flows.RegisterTrustedDevice(r.Context(), data.Username, userAgent, clientIP(r))
	if err != nil {
		slog.Warn("Browser registration failed", "username", data.Username, "err", err)
		renderError(w, r, statusForError(err), messageForError(err))
		return
	}

	if err := h.sessions.WriteCookie(w, *sess); err != nil {
		slog.Error("Failed to write session cookie", "err", err)
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if data.Language != "" {
		_ = h.sessions.WriteLocaleCookie(w, data.Language, sess.ExpiresAt)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, registration)
}

// PostLogout clears the session cookie.
func (h *Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.RevokeSession(w); err != nil {
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{"status": "logged_out"})
}

// GetAttempt returns the current state of an in-flight attempt.
func (h *Handle) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid attempt id")
		return
	}

	attempt, err := h.flows.Attempt(r.Context(), attemptID)
	if err != nil {
		renderError(w, r, http.StatusNotFound, "Login attempt not found")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, challengeResponse(attempt))
}

// GetAuthorize redirects the browser to the remote provider's authorization
// endpoint.
func (h *Handle) GetAuthorize(w http.ResponseWriter, r *http.Request) {
	target, err := h.gateway.AuthorizationRedirect()
	if err != nil {
		slog.Error("Authorization redirect unavailable", "err", err)
		renderError(w, r, http.StatusInternalServerError, "System Authentication Failed")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GetCallback completes the authorization-code flow. The access token is
// stored as the session credential and the browser is sent to the dashboard.
func (h *Handle) GetCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		renderError(w, r, http.StatusBadRequest, "Missing authorization code")
		return
	}

	token, err := h.gateway.ExchangeAuthorizationCode(r.Context(), code)
	if err != nil {
		slog.Error("Authorization code exchange failed", "err", err)
		renderError(w, r, http.StatusBadRequest, "Authorization code exchange failed")
		return
	}

	now := time.Now().UTC()
	sess := session.Session{
		Token:     token.AccessToken,
		Tier:      session.TierEphemeral,
		IssuedAt:  now,
		ExpiresAt: now.Add(callbackSessionTTL),
	}
	if err := h.sessions.WriteCookie(w, sess); err != nil {
		slog.Error("Failed to write session cookie", "err", err)
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func challengeResponse(attempt *loginflow.LoginAttempt) ChallengeResponse {
	return ChallengeResponse{
		AttemptID: attempt.ID.String(),
		State:     string(attempt.State),
		QR:        attempt.QRDataURI,
		Method:    string(attempt.MFAMethod),
	}
}

func renderError(w http.ResponseWriter, r *http.Request, code int, message string) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// clientIP prefers the forwarding header set by the reverse proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}
