package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"
)

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	other, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other, "secrets must be unique per call")
}

func TestEnrollmentURIRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	uri := EnrollmentURI(secret, "26626656", Issuer)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))

	key, err := otp.NewKeyFromURL(uri)
	require.NoError(t, err)
	assert.Equal(t, secret, key.Secret())
	assert.Equal(t, Issuer, key.Issuer())
	assert.Contains(t, key.AccountName(), "26626656")
}

func TestRenderQR(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	dataURI, err := RenderQR(EnrollmentURI(secret, "user", Issuer))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURI, "data:image/png;base64,"))
	assert.Greater(t, len(dataURI), len("data:image/png;base64,"))
}

func TestVerifyWithinSkewWindow(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	now := time.Now().UTC()

	// Codes from adjacent steps inside the two-step tolerance are accepted.
	for _, offset := range []time.Duration{0, -60 * time.Second, 60 * time.Second} {
		code, err := GenerateCodeAt(secret, now.Add(offset))
		require.NoError(t, err)
		assert.True(t, VerifyAt(code, secret, now), "offset %v should verify", offset)
	}
}

func TestVerifyOutsideSkewWindow(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	// Pin verification time to a step boundary so three steps away is
	// unambiguously outside the window.
	now := time.Unix((time.Now().Unix()/Period)*Period, 0).UTC()

	for _, offset := range []time.Duration{-90 * time.Second, 120 * time.Second} {
		code, err := GenerateCodeAt(secret, now.Add(offset))
		require.NoError(t, err)
		assert.False(t, VerifyAt(code, secret, now), "offset %v should be rejected", offset)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	assert.False(t, Verify("000000", secret))
	assert.False(t, Verify("", secret))
	assert.False(t, Verify("not-a-code", secret))
}

// Cross-check code derivation against an independent implementation.
func TestCurrentCodeMatchesIndependentImplementation(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	now := time.Now().UTC()
	code, err := GenerateCodeAt(secret, now)
	require.NoError(t, err)

	independent := gotp.NewDefaultTOTP(secret).At(now.Unix())
	assert.Equal(t, independent, code)
}
