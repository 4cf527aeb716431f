package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financialhub/login-core/pkg/device"
	"github.com/financialhub/login-core/pkg/directory"
	"github.com/financialhub/login-core/pkg/idp"
	"github.com/financialhub/login-core/pkg/loginflow"
	"github.com/financialhub/login-core/pkg/notification"
	"github.com/financialhub/login-core/pkg/ratelimit"
	"github.com/financialhub/login-core/pkg/session"
	"github.com/financialhub/login-core/pkg/totp"
)

type stubGateway struct {
	verifyErr error
}

func (g *stubGateway) PasswordGrant(ctx context.Context, username, password string) (*idp.TokenResponse, error) {
	return &idp.TokenResponse{AccessToken: "token"}, nil
}

func (g *stubGateway) VerifyIdentityExists(ctx context.Context, username string) (*idp.Verification, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return &idp.Verification{Verified: true, Profile: idp.Profile{Email: username}, Method: "cloud_verified"}, nil
}

type stubDispatcher struct{}

func (d *stubDispatcher) SendPasscode(ctx context.Context, toAddress, code, displayName string) (notification.DeliveryResult, error) {
	return notification.DeliveryResult{Success: true, MessageID: "msg"}, nil
}

type apiHarness struct {
	router     chi.Router
	gateway    *stubGateway
	flows      *loginflow.Service
	challenges *totp.InMemChallengeStore
	provider   *httptest.Server
	limiter    *ratelimit.Limiter
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	gateway := &stubGateway{}
	challengeStore := totp.NewInMemChallengeStore()
	challenges := totp.NewService(challengeStore)

	registrations := device.NewRegistrationService(device.NewInMemRegistrationRepository())
	sessions := session.NewService(session.NewCookieSetter(true, false), registrations)

	flows := loginflow.NewService(
		directory.NewInMemDirectoryRepository(directory.DemoAccounts()),
		gateway, challenges, &stubDispatcher{}, sessions,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v4/tenant/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "exchanged-token", "token_type": "Bearer"})
	})
	providerServer := httptest.NewServer(mux)
	t.Cleanup(providerServer.Close)

	idpService := idp.NewService(idp.Provider{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		OAuthServerURL: providerServer.URL + "/oauth/v4/tenant",
		RedirectURI:    "http://localhost:4000/api/auth/callback",
	})

	limiter := ratelimit.NewLimiter(3, 0, 0)

	handle := NewHandle(
		WithFlowService(flows),
		WithSessionService(sessions),
		WithGateway(idpService),
		WithAttemptLimiter(limiter),
	)

	router := chi.NewRouter()
	handle.RegisterRoutes(router)

	return &apiHarness{
		router:     router,
		gateway:    gateway,
		flows:      flows,
		challenges: challengeStore,
		provider:   providerServer,
		limiter:    limiter,
	}
}

func (h *apiHarness) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)
	return recorder
}

func cookieByName(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestPostLoginIssuesChallenge(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "26626656"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp ChallengeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "challenge_issued", resp.State)
	assert.NotEmpty(t, resp.AttemptID)
	assert.Contains(t, resp.QR, "data:image/png;base64,")
}

func TestPostLoginRequiresUsername(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPostLoginUnknownIdentity(t *testing.T) {
	h := newAPIHarness(t)
	h.gateway.verifyErr = idp.ErrIdentityNotFound

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "nobody@example.org"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "User email not found in Cloud Directory", resp.Error)
}

func TestVerifyFlowEndToEnd(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "26626656"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var challenge ChallengeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &challenge))

	attemptReq := httptest.NewRequest(http.MethodGet, "/attempt/"+challenge.AttemptID, nil)
	attemptRec := httptest.NewRecorder()
	h.router.ServeHTTP(attemptRec, attemptReq)
	require.Equal(t, http.StatusOK, attemptRec.Code)

	code := h.currentCode(t, challenge.AttemptID)
	verifyRec := h.postJSON(t, "/verify", VerifyRequest{AttemptID: challenge.AttemptID, Code: code})
	require.Equal(t, http.StatusOK, verifyRec.Code)

	cookie := cookieByName(verifyRec, session.AuthTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, "valid-session", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

// currentCode reads the valid code for an attempt straight from the
// challenge store; the HTTP surface never exposes it.
func (h *apiHarness) currentCode(t *testing.T, attemptID string) string {
	t.Helper()

	id, err := uuid.Parse(attemptID)
	require.NoError(t, err)

	attempt, err := h.flows.Attempt(context.Background(), id)
	require.NoError(t, err)

	challenge, err := h.challenges.Get(context.Background(), attempt.ChallengeID)
	require.NoError(t, err)
	return challenge.CurrentCode
}

func TestPostVerifyRestoresAttemptBudget(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "26626656"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var challenge ChallengeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &challenge))

	// httptest requests come from 192.0.2.1; drain that client's budget.
	for h.limiter.Allow("192.0.2.1") {
	}
	require.False(t, h.limiter.Allow("192.0.2.1"))

	code := h.currentCode(t, challenge.AttemptID)
	verifyRec := h.postJSON(t, "/verify", VerifyRequest{AttemptID: challenge.AttemptID, Code: code})
	require.Equal(t, http.StatusOK, verifyRec.Code)

	assert.True(t, h.limiter.Allow("192.0.2.1"))
}

func TestPostVerifyWrongCode(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "26626656"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var challenge ChallengeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &challenge))

	verifyRec := h.postJSON(t, "/verify", VerifyRequest{AttemptID: challenge.AttemptID, Code: "000000"})
	assert.Equal(t, http.StatusUnauthorized, verifyRec.Code)
	assert.Nil(t, cookieByName(verifyRec, session.AuthTokenCookie))
}

func TestPostBack(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/login", LoginRequest{Username: "26626656"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var challenge ChallengeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &challenge))

	backRec := h.postJSON(t, "/back", BackRequest{AttemptID: challenge.AttemptID})
	require.Equal(t, http.StatusOK, backRec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(backRec.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting_primary", resp["state"])
}

func TestPostRegisterBrowser(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/register-browser", RegisterBrowserRequest{Username: "26626656", Language: "fr"})
	require.Equal(t, http.StatusOK, recorder.Code)

	authCookie := cookieByName(recorder, session.AuthTokenCookie)
	require.NotNil(t, authCookie)
	assert.Equal(t, "persistent-session-26626656", authCookie.Value)

	localeCookie := cookieByName(recorder, session.LocaleCookie)
	require.NotNil(t, localeCookie)
	assert.Equal(t, "fr", localeCookie.Value)

	var registration device.Registration
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &registration))
	assert.Equal(t, "Mozilla/5.0", registration.UserAgent)
}

func TestPostRegisterBrowserUnknownUser(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/register-browser", RegisterBrowserRequest{Username: "99999999"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetCallback(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc123", nil)
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/dashboard", recorder.Result().Header.Get("Location"))

	cookie := cookieByName(recorder, session.AuthTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, "exchanged-token", cookie.Value)
}

func TestGetCallbackMissingCode(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPostLogout(t *testing.T) {
	h := newAPIHarness(t)

	recorder := h.postJSON(t, "/logout", struct{}{})
	require.Equal(t, http.StatusOK, recorder.Code)

	cookie := cookieByName(recorder, session.AuthTokenCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}
